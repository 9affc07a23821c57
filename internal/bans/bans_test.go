package bans

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAddAndCheck(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "data", "bans.json"))

	if err := m.AddBan("10.0.0.1", "griefing", "admin", 0); err != nil {
		t.Fatalf("AddBan failed: %v", err)
	}
	if err := m.AddBanByName("Mallory", "spam", "admin", time.Hour); err != nil {
		t.Fatalf("AddBanByName failed: %v", err)
	}

	tests := []struct {
		ip, name string
		want     bool
	}{
		{"10.0.0.1", "alice", true},
		{"10.0.0.2", "mallory", true},
		{"10.0.0.2", " MALLORY ", true},
		{"10.0.0.2", "alice", false},
	}

	for _, tt := range tests {
		banned, ban := m.Check(tt.ip, tt.name)
		if banned != tt.want {
			t.Errorf("Check(%q, %q) = %v, want %v", tt.ip, tt.name, banned, tt.want)
		}
		if banned && ban == nil {
			t.Errorf("Check(%q, %q) returned no ban", tt.ip, tt.name)
		}
	}
}

func TestExpiredBansIgnored(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "bans.json"))

	if err := m.AddBan("10.0.0.1", "", "admin", time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	if banned, _ := m.IsBanned("10.0.0.1"); banned {
		t.Error("expired ban still active")
	}
	if len(m.GetAll()) != 0 {
		t.Error("GetAll returned an expired ban")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.json")
	m := NewManager(path)

	if err := m.AddBan("10.0.0.1", "cheating", "admin", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBanByName("eve", "", "admin", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBan("10.0.0.9", "", "admin", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveBan("10.0.0.9"); err != nil {
		t.Fatal(err)
	}

	loaded := NewManager(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	all := loaded.GetAll()
	if len(all) != 2 {
		t.Fatalf("loaded %d bans, want 2", len(all))
	}
	if all[0].Type != BanTypeIP || all[0].Reason != "cheating" {
		t.Errorf("first ban = %+v", all[0])
	}
	if banned, _ := loaded.IsBannedByName("EVE"); !banned {
		t.Error("name ban lost on reload")
	}
	if banned, _ := loaded.IsBanned("10.0.0.9"); banned {
		t.Error("removed ban came back")
	}

	if err := loaded.RemoveBanByName("Eve"); err != nil {
		t.Fatal(err)
	}
	if banned, _ := loaded.IsBannedByName("eve"); banned {
		t.Error("RemoveBanByName did not lift the ban")
	}
}

func TestLoadMissingAndBadFile(t *testing.T) {
	dir := t.TempDir()

	if err := NewManager(filepath.Join(dir, "missing.json")).Load(); err != nil {
		t.Errorf("missing file should load cleanly: %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewManager(bad).Load(); err == nil {
		t.Error("expected parse error")
	}
}
