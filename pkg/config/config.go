package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// GamePort is the TCP port the game protocol listens on. It is not configurable.
const GamePort = 11000

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Game    GameConfig    `toml:"game"`
	Walls   []WallConfig  `toml:"walls"`
	Network NetworkConfig `toml:"network"`
	Stats   StatsConfig   `toml:"stats"`
}

type ServerConfig struct {
	Name       string `toml:"name"`
	MaxPlayers int    `toml:"max_players"`
	BansFile   string `toml:"bans_file"`

	// logging configuration
	LogToFile bool `toml:"log_to_file"`
}

type GameConfig struct {
	UniverseSize     int     `toml:"universe_size"`
	FrameMS          int     `toml:"frame_ms"`
	FramesPerShot    int     `toml:"frames_per_shot"`
	RespawnRate      int     `toml:"respawn_rate"`
	StartingHP       int     `toml:"starting_hp"`
	ProjectileSpeed  float64 `toml:"projectile_speed"`
	EngineStrength   float64 `toml:"engine_strength"`
	TankSize         float64 `toml:"tank_size"`
	WallSize         float64 `toml:"wall_size"`
	MaxPowerUps      int     `toml:"max_powerups"`
	PowerUpDelay     int     `toml:"powerup_delay"`
	Mode             string  `toml:"mode"`
	SpeedBoostFrames int     `toml:"speed_boost_frames"`
	Script           string  `toml:"script"`
}

type Point struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

type WallConfig struct {
	P1 Point `toml:"p1"`
	P2 Point `toml:"p2"`
}

type NetworkConfig struct {
	WebSocketAddr string `toml:"websocket_addr"`
	WebSocketPath string `toml:"websocket_path"`
	ENetPort      int    `toml:"enet_port"`
	PingAddr      string `toml:"ping_addr"`
}

type StatsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

const (
	ModeBasic = "basic"
	ModeExtra = "extra"
)

// Default returns the stock arena: a 2000 unit square bordered by walls.
func Default() *Config {
	cfg := &Config{
		Walls: []WallConfig{
			{P1: Point{-975, -975}, P2: Point{975, -975}},
			{P1: Point{-975, 975}, P2: Point{975, 975}},
			{P1: Point{-975, -975}, P2: Point{-975, 975}},
			{P1: Point{975, -975}, P2: Point{975, 975}},
			{P1: Point{-200, -300}, P2: Point{-200, 300}},
			{P1: Point{200, -300}, P2: Point{200, 300}},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	return &config, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TANKWARS_MODE"); v != "" {
		c.Game.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("TANKWARS_SCRIPT"); v != "" {
		c.Game.Script = v
	}
	if v := os.Getenv("TANKWARS_STATS_PATH"); v != "" {
		c.Stats.Enabled = true
		c.Stats.Path = v
	}
	if v := os.Getenv("TANKWARS_WEBSOCKET_ADDR"); v != "" {
		c.Network.WebSocketAddr = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "TankWars"
	}
	if c.Server.MaxPlayers == 0 {
		c.Server.MaxPlayers = 32
	}

	g := &c.Game
	if g.UniverseSize == 0 {
		g.UniverseSize = 2000
	}
	if g.FrameMS == 0 {
		g.FrameMS = 17
	}
	if g.FramesPerShot == 0 {
		g.FramesPerShot = 80
	}
	if g.RespawnRate == 0 {
		g.RespawnRate = 300
	}
	if g.StartingHP == 0 {
		g.StartingHP = 3
	}
	if g.ProjectileSpeed == 0 {
		g.ProjectileSpeed = 25
	}
	if g.EngineStrength == 0 {
		g.EngineStrength = 3
	}
	if g.TankSize == 0 {
		g.TankSize = 60
	}
	if g.WallSize == 0 {
		g.WallSize = 50
	}
	if g.MaxPowerUps == 0 {
		g.MaxPowerUps = 2
	}
	if g.PowerUpDelay == 0 {
		g.PowerUpDelay = 1650
	}
	if g.Mode == "" {
		g.Mode = ModeBasic
	}
	g.Mode = strings.ToLower(g.Mode)

	if c.Network.WebSocketPath == "" {
		c.Network.WebSocketPath = "/ws"
	}
	if c.Stats.Path == "" {
		c.Stats.Path = "data/stats.db"
	}
}

// Validate checks the config and normalizes the game mode name.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server name cannot be empty")
	}

	if c.Server.MaxPlayers <= 0 {
		return fmt.Errorf("max_players must be positive")
	}

	g := c.Game
	if g.UniverseSize <= 25 {
		return fmt.Errorf("universe_size must be greater than 25, got %d", g.UniverseSize)
	}
	if g.FrameMS <= 0 {
		return fmt.Errorf("frame_ms must be positive, got %d", g.FrameMS)
	}
	if g.FramesPerShot < 0 || g.RespawnRate < 0 || g.PowerUpDelay < 0 || g.MaxPowerUps < 0 {
		return fmt.Errorf("frame counters cannot be negative")
	}
	if g.StartingHP <= 0 {
		return fmt.Errorf("starting_hp must be positive, got %d", g.StartingHP)
	}
	if g.ProjectileSpeed <= 0 || g.EngineStrength <= 0 {
		return fmt.Errorf("projectile_speed and engine_strength must be positive")
	}
	if g.TankSize <= 0 || g.WallSize <= 0 {
		return fmt.Errorf("tank_size and wall_size must be positive")
	}
	if g.SpeedBoostFrames < 0 {
		return fmt.Errorf("speed_boost_frames cannot be negative")
	}
	mode, err := ParseMode(g.Mode)
	if err != nil {
		return err
	}
	c.Game.Mode = mode

	// a tank wrapped to the far edge must land inside the arena
	if g.WallSize+g.TankSize/2 >= float64(g.UniverseSize)/2 {
		return fmt.Errorf("wall_size + tank_size/2 must be less than half of universe_size, got %g >= %g",
			g.WallSize+g.TankSize/2, float64(g.UniverseSize)/2)
	}

	for i, w := range c.Walls {
		if w.P1.X != w.P2.X && w.P1.Y != w.P2.Y {
			return fmt.Errorf("wall %d is not axis-aligned: (%g,%g)-(%g,%g)", i, w.P1.X, w.P1.Y, w.P2.X, w.P2.Y)
		}
	}

	if c.Network.ENetPort < 0 || c.Network.ENetPort > 65535 {
		return fmt.Errorf("invalid enet_port: %d", c.Network.ENetPort)
	}
	if c.Network.ENetPort == GamePort {
		return fmt.Errorf("enet_port cannot be the game port %d", GamePort)
	}

	return nil
}

func ParseMode(mode string) (string, error) {
	switch strings.ToLower(mode) {
	case ModeBasic:
		return ModeBasic, nil
	case ModeExtra:
		return ModeExtra, nil
	default:
		return "", fmt.Errorf("invalid mode: %q (want basic or extra)", mode)
	}
}
