package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
[game]
universe_size = 1200
mode = "extra"

[[walls]]
p1 = { x = -100.0, y = 0.0 }
p2 = { x = 100.0, y = 0.0 }
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Game.UniverseSize != 1200 {
		t.Errorf("universe_size = %d, want 1200", cfg.Game.UniverseSize)
	}
	if cfg.Game.Mode != ModeExtra {
		t.Errorf("mode = %q, want extra", cfg.Game.Mode)
	}
	if cfg.Game.FrameMS != 17 || cfg.Game.StartingHP != 3 || cfg.Game.TankSize != 60 {
		t.Errorf("defaults not applied: %+v", cfg.Game)
	}
	if len(cfg.Walls) != 1 {
		t.Fatalf("expected 1 wall, got %d", len(cfg.Walls))
	}
	if cfg.Walls[0].P1 != (Point{-100, 0}) || cfg.Walls[0].P2 != (Point{100, 0}) {
		t.Errorf("wall parsed as %+v", cfg.Walls[0])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "[game\nuniverse_size = ")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(c *Config) {}, ""},
		{"diagonal wall", func(c *Config) {
			c.Walls = append(c.Walls, WallConfig{P1: Point{0, 0}, P2: Point{10, 10}})
		}, "not axis-aligned"},
		{"bad mode", func(c *Config) { c.Game.Mode = "chaos" }, "invalid mode"},
		{"zero frame", func(c *Config) { c.Game.FrameMS = 0 }, "frame_ms"},
		{"tiny arena", func(c *Config) { c.Game.UniverseSize = 10 }, "universe_size"},
		{"enet on game port", func(c *Config) { c.Network.ENetPort = GamePort }, "game port"},
		{"negative boost", func(c *Config) { c.Game.SpeedBoostFrames = -1 }, "speed_boost_frames"},
		{"wrap edge outside arena", func(c *Config) {
			c.Game.UniverseSize = 200
			c.Game.WallSize = 80
			c.Game.TankSize = 60
		}, "wall_size + tank_size/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestModeIsCaseInsensitive(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "[game]\nmode = \"Extra\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Game.Mode != ModeExtra {
		t.Errorf("mode after load = %q, want extra", cfg.Game.Mode)
	}

	cfg = Default()
	cfg.Game.Mode = "BASIC"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Game.Mode != ModeBasic {
		t.Errorf("mode after Validate = %q, want basic", cfg.Game.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TANKWARS_MODE", "EXTRA")
	t.Setenv("TANKWARS_STATS_PATH", "/tmp/stats.db")

	cfg, err := LoadConfig(writeConfig(t, "[game]\nmode = \"basic\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Game.Mode != ModeExtra {
		t.Errorf("mode = %q, want extra", cfg.Game.Mode)
	}
	if !cfg.Stats.Enabled || cfg.Stats.Path != "/tmp/stats.db" {
		t.Errorf("stats override not applied: %+v", cfg.Stats)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "none.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TANKWARS_TEST_DOTENV=hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TANKWARS_TEST_DOTENV", "")
	os.Unsetenv("TANKWARS_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("TANKWARS_TEST_DOTENV"); got != "hello" {
		t.Errorf("env value = %q, want hello", got)
	}
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("shipped config invalid: %v", err)
	}
}
