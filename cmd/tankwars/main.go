package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/siohaza/tankwars/internal/bans"
	"github.com/siohaza/tankwars/internal/client"
	"github.com/siohaza/tankwars/internal/server"
	"github.com/siohaza/tankwars/internal/stats"
	"github.com/siohaza/tankwars/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	envPath     string
	logLevel    string
	useDefaults bool
	version     = "1.0.0"

	botHost  string
	botPort  int
	botName  string
	botCount int
	botSeed  int64

	statsLimit int
	showMatch  bool

	banReason   string
	banDuration time.Duration
	banByName   bool
)

var rootCmd = &cobra.Command{
	Use:   "tankwars",
	Short: "TankWars - authoritative multiplayer arena server",
	Long: `TankWars runs the simulation and network synchronization for the TankWars
arena game: tanks, projectiles, beams and power-ups over a line-delimited JSON
protocol on TCP, with optional WebSocket and ENet transports.`,
	Version: version,
	Run:     runServer,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the TankWars server",
	Long:  "Start the TankWars server with the specified configuration",
	Run:   runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("TankWars v%s\n", version)
		fmt.Printf("Game port %d\n", config.GamePort)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Connect headless bots to a server",
	Run:   runBots,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the leaderboard from the stats database",
	Run:   runStats,
}

var banCmd = &cobra.Command{
	Use:   "ban <ip|name>",
	Short: "Ban an IP address or player name (read at server start)",
	Args:  cobra.ExactArgs(1),
	Run:   runBan,
}

var unbanCmd = &cobra.Command{
	Use:   "unban <ip|name>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	Run:   runUnban,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.toml", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "optional dotenv file with TANKWARS_* overrides")
	rootCmd.PersistentFlags().BoolVar(&useDefaults, "defaults", false, "ignore the config file and use built-in defaults")

	botCmd.Flags().StringVar(&botHost, "host", "127.0.0.1", "server host")
	botCmd.Flags().IntVar(&botPort, "port", config.GamePort, "server port")
	botCmd.Flags().StringVar(&botName, "name", "bot", "name prefix")
	botCmd.Flags().IntVarP(&botCount, "count", "n", 1, "number of bots")
	botCmd.Flags().Int64Var(&botSeed, "seed", 0, "random seed (0 uses the clock)")

	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "rows to print")
	statsCmd.Flags().BoolVar(&showMatch, "matches", false, "print recent matches instead of the leaderboard")

	banCmd.Flags().StringVar(&banReason, "reason", "", "ban reason")
	banCmd.Flags().DurationVar(&banDuration, "duration", 0, "ban duration (0 is permanent)")
	banCmd.Flags().BoolVar(&banByName, "name", false, "treat the argument as a player name")
	unbanCmd.Flags().BoolVar(&banByName, "name", false, "treat the argument as a player name")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig() *config.Config {
	if err := config.LoadDotEnv(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if useDefaults {
		return config.Default()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the process logger. The returned closer releases the log
// file, if any.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	var logWriter io.Writer = os.Stdout
	closer := func() {}

	if cfg.Server.LogToFile {
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
			os.Exit(1)
		}

		logPath := filepath.Join(logDir, fmt.Sprintf("tankwars_%d.log", time.Now().Unix()))
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		closer = func() { logFile.Close() }

		logWriter = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)
	return logger, closer
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger, closeLog := newLogger(cfg)
	defer closeLog()

	logger.Info("starting tankwars server", "version", version)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	logger.Info("server running",
		"name", cfg.Server.Name,
		"address", srv.Addr().String(),
		"mode", cfg.Game.Mode,
	)

	waitForSignal()
	logger.Info("shutting down server", "uptime", srv.GetUptime().Round(time.Second))

	srv.Stop()
	logger.Info("server stopped successfully")
}

func runBots(cmd *cobra.Command, args []string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)

	seed := botSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bots []*client.Client
	for i := range botCount {
		name := botName
		if botCount > 1 {
			name = fmt.Sprintf("%s%d", botName, i+1)
		}

		bot := client.NewBot(seed + int64(i))
		c := client.New(
			client.WithPort(botPort),
			client.WithLogger(logger.With("bot", name)),
			client.WithOnFrame(bot.Command),
		)
		if err := c.Connect(ctx, botHost, name); err != nil {
			logger.Error("failed to connect bot", "name", name, "error", err)
			os.Exit(1)
		}
		defer c.Close()
		bots = append(bots, c)
	}

	logger.Info("bots running", "count", len(bots), "host", botHost, "port", botPort)

	done := make(chan struct{})
	for _, c := range bots {
		go func() {
			<-c.Done()
			if err := c.Err(); err != nil {
				logger.Warn("bot disconnected", "name", c.Name(), "error", err)
			}
			done <- struct{}{}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	remaining := len(bots)
	for remaining > 0 {
		select {
		case <-sigChan:
			logger.Info("stopping bots")
			return
		case <-done:
			remaining--
		}
	}
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	store, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if showMatch {
		matches, err := store.Matches(statsLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(tw, "ID\tMODE\tENDED\tDURATION\tWINNER\tSCORE")
		for _, m := range matches {
			winner, score := "-", 0
			if len(m.Players) > 0 {
				winner, score = m.Players[0].Name, m.Players[0].Score
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
				m.ID, m.Mode, m.EndedAt.Format(time.DateTime),
				m.EndedAt.Sub(m.StartedAt).Round(time.Second), winner, score)
		}
		return
	}

	board, err := store.Leaderboard(statsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(tw, "NAME\tKILLS\tDEATHS\tSHOTS\tBEAMS\tPOWERUPS\tBEST")
	for _, p := range board {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			p.Name, p.Kills, p.Deaths, p.Shots, p.Beams, p.PowerUps, p.BestScore)
	}
}

func banManager() *bans.Manager {
	cfg := loadConfig()
	if cfg.Server.BansFile == "" {
		fmt.Fprintln(os.Stderr, "bans_file is not configured")
		os.Exit(1)
	}

	m := bans.NewManager(cfg.Server.BansFile)
	if err := m.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return m
}

func runBan(cmd *cobra.Command, args []string) {
	m := banManager()

	var err error
	if banByName {
		err = m.AddBanByName(args[0], banReason, "console", banDuration)
	} else {
		err = m.AddBan(args[0], banReason, "console", banDuration)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("banned %s\n", args[0])
}

func runUnban(cmd *cobra.Command, args []string) {
	m := banManager()

	var err error
	if banByName {
		err = m.RemoveBanByName(args[0])
	} else {
		err = m.RemoveBan(args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("unbanned %s\n", args[0])
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
