package client

import (
	"math/rand"

	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

const (
	botHoldFrames = 30
	botAltChance  = 0.05
)

var botMoves = []world.Movement{world.MoveNone, world.MoveLeft, world.MoveRight, world.MoveUp, world.MoveDown}

// Bot wanders in random directions, aims at the nearest live tank and fires
// whenever it can.
type Bot struct {
	rng    *rand.Rand
	moving world.Movement
	hold   int
}

func NewBot(seed int64) *Bot {
	return &Bot{rng: rand.New(rand.NewSource(seed)), moving: world.MoveNone}
}

// Command is a FrameFunc.
func (b *Bot) Command(w *world.World, id int) world.Command {
	if b.hold <= 0 {
		b.moving = botMoves[b.rng.Intn(len(botMoves))]
		b.hold = botHoldFrames
	}
	b.hold--

	cmd := world.Command{Moving: b.moving, Fire: world.FireMain, Aim: geometry.Up}

	self, ok := w.Tank(id)
	if !ok || !self.Alive() {
		cmd.Fire = world.FireNone
		return cmd
	}

	if target, ok := nearest(w, self); ok {
		if d := target.Location.Sub(self.Location); !d.IsZero() {
			cmd.Aim = d.Normalize()
		}
	} else {
		cmd.Aim = self.Aim
		if cmd.Aim.IsZero() {
			cmd.Aim = geometry.Up
		}
	}

	if b.rng.Float64() < botAltChance {
		cmd.Fire = world.FireAlt
	}
	return cmd
}

func nearest(w *world.World, self world.Tank) (world.Tank, bool) {
	var (
		best  world.Tank
		found bool
		dist  float64
	)
	for _, t := range w.Tanks() {
		if t.ID == self.ID || !t.Alive() || t.Disconnected {
			continue
		}
		d := self.Location.Distance(t.Location)
		if !found || d < dist {
			best, dist, found = t, d, true
		}
	}
	return best, found
}
