package player

import (
	"net"
	"testing"

	"github.com/siohaza/tankwars/internal/network"
)

func newTestPlayer(t *testing.T) *Player {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { b.Close() })
	c := network.NewConn(a, "pipe")
	t.Cleanup(func() { c.Close() })
	return New(c)
}

func TestNewPlayer(t *testing.T) {
	p := newTestPlayer(t)

	if p.GetState() != StateAwaitingName {
		t.Errorf("state = %v, want awaiting_name", p.GetState())
	}
	if p.GetTankID() != -1 {
		t.Errorf("tank id = %d, want -1", p.GetTankID())
	}
	if p.IsActive() {
		t.Error("new player should not be active")
	}

	p.Join(4, "alice")
	if p.GetTankID() != 4 || p.GetName() != "alice" {
		t.Errorf("after join: tank=%d name=%q", p.GetTankID(), p.GetName())
	}
	if !p.IsActive() {
		t.Error("player should be active")
	}
	if p.JoinedAt.IsZero() {
		t.Error("JoinedAt not set")
	}
}

func TestHandshakeStateString(t *testing.T) {
	tests := []struct {
		state HandshakeState
		want  string
	}{
		{StateAwaitingName, "awaiting_name"},
		{StateActive, "active"},
		{StateClosed, "closed"},
		{HandshakeState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	p1 := newTestPlayer(t)
	p2 := newTestPlayer(t)

	m.Add(p2)
	m.Add(p1)

	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}
	if !m.Contains(p1.ID()) {
		t.Error("Contains(p1) = false")
	}

	all := m.GetAll()
	if all[0].ID() > all[1].ID() {
		t.Error("GetAll not ordered by id")
	}

	if got, ok := m.Get(p2.ID()); !ok || got != p2 {
		t.Error("Get(p2) failed")
	}

	p1.Join(7, "bob")
	if got, ok := m.GetByTank(7); !ok || got != p1 {
		t.Error("GetByTank(7) failed")
	}
	if _, ok := m.GetByTank(99); ok {
		t.Error("GetByTank(99) should fail")
	}

	p1.SetState(StateActive)
	if m.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", m.ActiveCount())
	}

	visited := 0
	m.ForEach(func(p *Player) {
		visited++
		if p != p1 {
			t.Error("ForEach visited an inactive player")
		}
	})
	if visited != 1 {
		t.Errorf("ForEach visited %d players, want 1", visited)
	}

	m.Remove(p1.ID())
	if m.Contains(p1.ID()) || m.Count() != 1 {
		t.Error("Remove did not drop the player")
	}
}

func TestAddMalformed(t *testing.T) {
	p := newTestPlayer(t)
	p.AddMalformed(2)
	if got := p.AddMalformed(1); got != 3 {
		t.Errorf("AddMalformed total = %d, want 3", got)
	}
}
