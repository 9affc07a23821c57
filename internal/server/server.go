package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siohaza/tankwars/internal/bans"
	"github.com/siohaza/tankwars/internal/callbacks"
	"github.com/siohaza/tankwars/internal/gamemode"
	"github.com/siohaza/tankwars/internal/gamestate"
	"github.com/siohaza/tankwars/internal/network"
	"github.com/siohaza/tankwars/internal/ping"
	"github.com/siohaza/tankwars/internal/player"
	"github.com/siohaza/tankwars/internal/stats"
	"github.com/siohaza/tankwars/pkg/config"
)

const pingUpdateInterval = time.Second

type Server struct {
	config    *config.Config
	gameState *gamestate.GameState
	gameMode  gamemode.GameMode
	players   *player.Manager
	handlers  map[player.HandshakeState]stateHandler
	logger    *slog.Logger
	running   atomic.Bool
	startTime time.Time

	port       int
	seed       int64
	manualTick bool
	extended   bool

	listener    *network.Listener
	websocket   *network.WebSocketServer
	enet        *network.ENetServer
	pingHandler *ping.Handler

	banManager *bans.Manager
	callbacks  *callbacks.CallbackChain
	statsStore *stats.Store
	recorder   *stats.Recorder

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Option func(*Server)

// WithPort overrides the fixed game port; 0 picks a free port.
func WithPort(port int) Option {
	return func(s *Server) { s.port = port }
}

// WithSeed makes spawn locations and extra-mode effects reproducible.
func WithSeed(seed int64) Option {
	return func(s *Server) { s.seed = seed }
}

// WithManualTick disables the frame ticker; the caller drives Tick.
func WithManualTick() Option {
	return func(s *Server) { s.manualTick = true }
}

func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:    cfg,
		players:   player.NewManager(),
		logger:    logger,
		port:      config.GamePort,
		callbacks: callbacks.NewCallbackChain(),
		extended:  cfg.Game.Mode == config.ModeExtra,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.seed != 0 {
		s.gameState = gamestate.NewWithSeed(cfg, s.seed)
	} else {
		s.gameState = gamestate.New(cfg)
	}

	gm, err := gamemode.New(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create game mode: %w", err)
	}
	s.gameMode = gm

	s.handlers = map[player.HandshakeState]stateHandler{
		player.StateAwaitingName: s.handleAwaitingName,
		player.StateActive:       s.handleActive,
	}

	if cfg.Server.BansFile != "" {
		s.banManager = bans.NewManager(cfg.Server.BansFile)
		if err := s.banManager.Load(); err != nil {
			logger.Warn("failed to load bans", "error", err)
		}
	}

	s.callbacks.Register(callbacks.NewLogCallbacks(logger))

	if cfg.Stats.Enabled {
		store, err := stats.Open(cfg.Stats.Path)
		if err != nil {
			gm.Close()
			cancel()
			return nil, fmt.Errorf("failed to open stats store: %w", err)
		}
		s.statsStore = store
		s.recorder = stats.NewRecorder(store, gm.Name(), logger)
		s.callbacks.Register(s.recorder)
	}

	return s, nil
}

func (s *Server) Start() error {
	listener, err := network.StartListening(s.port, s.accept, s.logger)
	if err != nil {
		return fmt.Errorf("failed to start network: %w", err)
	}
	s.listener = listener

	netCfg := s.config.Network

	if netCfg.WebSocketAddr != "" {
		ws, err := network.StartWebSocket(netCfg.WebSocketAddr, netCfg.WebSocketPath, s.accept, s.logger)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
		s.websocket = ws
	}

	if netCfg.ENetPort != 0 {
		host, err := network.StartENet(netCfg.ENetPort, s.config.Server.MaxPlayers, s.accept, s.logger)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to start enet listener: %w", err)
		}
		s.enet = host
	}

	if netCfg.PingAddr != "" {
		s.pingHandler = ping.NewHandler(netCfg.PingAddr, s.serverInfo(), s.logger)
		if err := s.pingHandler.Start(); err != nil {
			s.logger.Warn("failed to start ping handler", "error", err)
			s.pingHandler = nil
		} else {
			s.wg.Add(1)
			go s.updatePingLoop()
		}
	}

	s.startTime = time.Now()
	s.running.Store(true)

	if !s.manualTick {
		s.wg.Add(1)
		go s.run()
	}

	s.logger.Info("server started",
		"name", s.config.Server.Name,
		"address", listener.Addr().String(),
		"mode", s.gameMode.Name(),
		"universe_size", s.config.Game.UniverseSize,
		"walls", len(s.config.Walls),
	)

	return nil
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping server")

		s.running.Store(false)
		s.cancel()
		s.wg.Wait()

		if s.listener != nil {
			s.listener.Close()
		}
		if s.websocket != nil {
			s.websocket.Close()
		}
		if s.enet != nil {
			s.enet.Stop()
		}
		if s.pingHandler != nil {
			s.pingHandler.Stop()
		}

		for _, p := range s.players.GetAll() {
			p.SetState(player.StateClosed)
			p.Conn.Close()
			s.players.Remove(p.ID())
		}

		s.gameMode.Close()

		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil {
				s.logger.Warn("failed to save match", "error", err)
			}
		}
		if s.statsStore != nil {
			s.statsStore.Close()
		}

		s.logger.Info("server stopped")
	})
}

// Addr is the TCP game listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Port()
}

func (s *Server) RegisterCallbacks(cb callbacks.Callbacks) {
	s.callbacks.Register(cb)
}

func (s *Server) GameState() *gamestate.GameState {
	return s.gameState
}

func (s *Server) GetUptime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

func (s *Server) frameInterval() time.Duration {
	return time.Duration(s.config.Game.FrameMS) * time.Millisecond
}

func (s *Server) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.frameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("server context cancelled, exiting run loop")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Server) serverInfo() ping.ServerInfo {
	return ping.ServerInfo{
		Name:           s.config.Server.Name,
		PlayersCurrent: s.players.ActiveCount(),
		PlayersMax:     s.config.Server.MaxPlayers,
		Mode:           s.gameMode.Name(),
		UniverseSize:   s.config.Game.UniverseSize,
	}
}

func (s *Server) updatePingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pingUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.pingHandler.UpdateServerInfo(s.serverInfo())
		}
	}
}

// accept is the onAccept handler shared by every transport.
func (s *Server) accept(c *network.Conn) {
	if c.ErrorOccurred() {
		if s.running.Load() {
			s.logger.Error("listener failed", "transport", c.Kind(), "error", c.Err())
		}
		return
	}

	if !s.running.Load() {
		c.Close()
		return
	}

	p := player.New(c)
	s.players.Add(p)
	s.callbacks.OnConnect(c.ID(), c.RemoteAddr())

	c.SetHandler(s.onData)
	network.Receive(c)
}
