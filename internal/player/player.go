package player

import (
	"slices"
	"sync"
	"time"

	"github.com/siohaza/tankwars/internal/network"
)

type HandshakeState int

const (
	StateAwaitingName HandshakeState = iota
	StateActive
	StateClosed
)

func (s HandshakeState) String() string {
	switch s {
	case StateAwaitingName:
		return "awaiting_name"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Player is one live connection. TankID is -1 until the name step completes.
type Player struct {
	Conn      *network.Conn
	TankID    int
	Name      string
	State     HandshakeState
	JoinedAt  time.Time
	Malformed int

	mu sync.RWMutex
}

func New(conn *network.Conn) *Player {
	return &Player{
		Conn:   conn,
		TankID: -1,
		State:  StateAwaitingName,
	}
}

func (p *Player) ID() uint64 {
	return p.Conn.ID()
}

func (p *Player) GetState() HandshakeState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.State
}

func (p *Player) SetState(s HandshakeState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = s
}

func (p *Player) GetTankID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.TankID
}

func (p *Player) GetName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Name
}

// Join records the tank assigned at the end of the name step and marks the
// player active.
func (p *Player) Join(tankID int, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TankID = tankID
	p.Name = name
	p.State = StateActive
	p.JoinedAt = time.Now()
}

func (p *Player) AddMalformed(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Malformed += n
	return p.Malformed
}

func (p *Player) IsActive() bool {
	return p.GetState() == StateActive
}

// Manager is the set of live connections keyed by connection ID.
type Manager struct {
	players map[uint64]*Player
	mu      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		players: make(map[uint64]*Player),
	}
}

func (m *Manager) Add(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[p.ID()] = p
}

func (m *Manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, id)
}

func (m *Manager) Get(id uint64) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p, ok
}

func (m *Manager) GetByTank(tankID int) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.players {
		if p.GetTankID() == tankID {
			return p, true
		}
	}
	return nil, false
}

// GetAll returns the players ordered by connection ID.
func (m *Manager) GetAll() []*Player {
	m.mu.RLock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.RUnlock()

	slices.SortFunc(players, func(a, b *Player) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return players
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// ActiveCount counts players that finished the handshake.
func (m *Manager) ActiveCount() int {
	n := 0
	for _, p := range m.GetAll() {
		if p.IsActive() {
			n++
		}
	}
	return n
}

// ForEach calls fn for every active player without holding the manager lock.
func (m *Manager) ForEach(fn func(*Player)) {
	for _, p := range m.GetAll() {
		if !p.IsActive() {
			continue
		}
		fn(p)
	}
}

func (m *Manager) Contains(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.players[id]
	return exists
}
