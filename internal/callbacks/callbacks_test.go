package callbacks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/siohaza/tankwars/internal/world"
)

type recordingCallbacks struct {
	DefaultCallbacks
	events []string
}

func (r *recordingCallbacks) OnTankJoin(t world.Tank) {
	r.events = append(r.events, "join:"+t.Name)
}

func (r *recordingCallbacks) OnTankKill(killer, victim world.Tank) {
	r.events = append(r.events, "kill:"+killer.Name+">"+victim.Name)
}

func TestCallbackChainFansOut(t *testing.T) {
	chain := NewCallbackChain()
	a := &recordingCallbacks{}
	b := &recordingCallbacks{}
	chain.Register(a)
	chain.Register(b)

	chain.OnTankJoin(world.Tank{Name: "alice"})
	chain.OnTankKill(world.Tank{Name: "alice"}, world.Tank{Name: "bob"})
	chain.OnBeam(world.Beam{})
	chain.OnConnect(1, "127.0.0.1:5000")

	for i, r := range []*recordingCallbacks{a, b} {
		want := []string{"join:alice", "kill:alice>bob"}
		if len(r.events) != len(want) {
			t.Fatalf("callback %d got %v, want %v", i, r.events, want)
		}
		for j := range want {
			if r.events[j] != want[j] {
				t.Errorf("callback %d event %d = %q, want %q", i, j, r.events[j], want[j])
			}
		}
	}
}

func TestLogCallbacks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	l := NewLogCallbacks(logger)

	l.OnTankJoin(world.Tank{ID: 3, Name: "carol"})
	l.OnTankKill(world.Tank{ID: -1}, world.Tank{Name: "dave"})
	l.OnBeam(world.Beam{Owner: 3})

	out := buf.String()
	if !strings.Contains(out, "player joined") || !strings.Contains(out, "name=carol") {
		t.Errorf("join not logged: %s", out)
	}
	if !strings.Contains(out, "victim=dave") || strings.Contains(out, "killer=") {
		t.Errorf("unexpected kill log: %s", out)
	}
	if strings.Contains(out, "beam fired") {
		t.Error("debug event logged at info level")
	}
}
