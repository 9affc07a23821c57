package bans

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

type BanType string

const (
	BanTypeIP   BanType = "ip"
	BanTypeName BanType = "name"
)

type Ban struct {
	Type      BanType   `json:"type"`
	IP        string    `json:"ip,omitempty"`
	Name      string    `json:"name,omitempty"`
	Reason    string    `json:"reason"`
	BannedBy  string    `json:"banned_by"`
	BannedAt  time.Time `json:"banned_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Permanent bool      `json:"permanent"`
}

func (b *Ban) Expired(now time.Time) bool {
	return !b.Permanent && now.After(b.ExpiresAt)
}

// Manager keeps IP and name bans in a JSON file. Names match
// case-insensitively.
type Manager struct {
	ipBans   map[string]*Ban
	nameBans map[string]*Ban
	filePath string
	mu       sync.RWMutex
}

func NewManager(filePath string) *Manager {
	return &Manager{
		ipBans:   make(map[string]*Ban),
		nameBans: make(map[string]*Ban),
		filePath: filePath,
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read bans file: %w", err)
	}

	var bans []*Ban
	if err := json.Unmarshal(data, &bans); err != nil {
		return fmt.Errorf("failed to parse bans file: %w", err)
	}

	now := time.Now()
	m.ipBans = make(map[string]*Ban)
	m.nameBans = make(map[string]*Ban)
	for _, ban := range bans {
		if ban.Expired(now) {
			continue
		}
		if ban.Type == "" {
			ban.Type = BanTypeIP
		}

		switch ban.Type {
		case BanTypeIP:
			if ban.IP != "" {
				m.ipBans[ban.IP] = ban
			}
		case BanTypeName:
			if ban.Name != "" {
				m.nameBans[nameKey(ban.Name)] = ban
			}
		}
	}

	return nil
}

func (m *Manager) IsBanned(ip string) (bool, *Ban) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.ipBans, ip)
}

func (m *Manager) IsBannedByName(name string) (bool, *Ban) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.nameBans, nameKey(name))
}

// Check tests the IP first, then the name.
func (m *Manager) Check(ip, name string) (bool, *Ban) {
	if banned, ban := m.IsBanned(ip); banned {
		return true, ban
	}
	return m.IsBannedByName(name)
}

func lookup(bans map[string]*Ban, key string) (bool, *Ban) {
	ban, exists := bans[key]
	if !exists || ban.Expired(time.Now()) {
		return false, nil
	}
	return true, ban
}

func newBan(t BanType, reason, bannedBy string, duration time.Duration) *Ban {
	ban := &Ban{
		Type:      t,
		Reason:    reason,
		BannedBy:  bannedBy,
		BannedAt:  time.Now(),
		Permanent: duration == 0,
	}
	if duration > 0 {
		ban.ExpiresAt = ban.BannedAt.Add(duration)
	}
	return ban
}

// AddBan bans an IP. A zero duration is permanent.
func (m *Manager) AddBan(ip, reason, bannedBy string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ban := newBan(BanTypeIP, reason, bannedBy, duration)
	ban.IP = ip
	m.ipBans[ip] = ban

	return m.saveUnlocked()
}

func (m *Manager) AddBanByName(name, reason, bannedBy string, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ban := newBan(BanTypeName, reason, bannedBy, duration)
	ban.Name = name
	m.nameBans[nameKey(name)] = ban

	return m.saveUnlocked()
}

func (m *Manager) RemoveBan(ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ipBans, ip)
	return m.saveUnlocked()
}

func (m *Manager) RemoveBanByName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nameBans, nameKey(name))
	return m.saveUnlocked()
}

// GetAll returns the active bans, IP bans first, each group sorted.
func (m *Manager) GetAll() []*Ban {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeUnlocked(time.Now())
}

func (m *Manager) activeUnlocked(now time.Time) []*Ban {
	bans := make([]*Ban, 0, len(m.ipBans)+len(m.nameBans))
	for _, ban := range m.ipBans {
		if !ban.Expired(now) {
			bans = append(bans, ban)
		}
	}
	for _, ban := range m.nameBans {
		if !ban.Expired(now) {
			bans = append(bans, ban)
		}
	}

	slices.SortFunc(bans, func(a, b *Ban) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		if c := cmp.Compare(a.IP, b.IP); c != 0 {
			return c
		}
		return cmp.Compare(nameKey(a.Name), nameKey(b.Name))
	})
	return bans
}

func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.activeUnlocked(time.Now()), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bans: %w", err)
	}

	if dir := filepath.Dir(m.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create bans directory: %w", err)
		}
	}

	if err := os.WriteFile(m.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write bans file: %w", err)
	}

	return nil
}
