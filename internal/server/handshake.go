package server

import (
	"errors"
	"strings"

	"github.com/siohaza/tankwars/internal/gamestate"
	"github.com/siohaza/tankwars/internal/network"
	"github.com/siohaza/tankwars/internal/physics"
	"github.com/siohaza/tankwars/internal/player"
	"github.com/siohaza/tankwars/internal/protocol"
	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/geometry"
)

// stateHandler consumes whatever the player's connection has buffered and
// returns the next handshake state.
type stateHandler func(p *player.Player) player.HandshakeState

// spawnAim is the turret direction of a freshly placed tank.
var spawnAim = geometry.New(-1, 0)

// onData runs once per completed read on a connection.
func (s *Server) onData(c *network.Conn) {
	p, ok := s.players.Get(c.ID())
	if !ok {
		c.Close()
		return
	}

	if c.ErrorOccurred() {
		s.logger.Debug("connection error", "conn", c.ID(), "error", c.ErrorMessage())
		// joined players are parked by the next broadcast
		if p.GetTankID() < 0 {
			p.SetState(player.StateClosed)
			s.players.Remove(p.ID())
			c.Close()
		}
		return
	}

	handler, ok := s.handlers[p.GetState()]
	if !ok {
		return
	}

	next := handler(p)
	p.SetState(next)

	if next != player.StateClosed && !c.ErrorOccurred() {
		network.Receive(c)
	}
}

// handleAwaitingName waits for the first complete line, then places the
// player's tank and sends the handshake.
func (s *Server) handleAwaitingName(p *player.Player) player.HandshakeState {
	c := p.Conn
	buf := c.Snapshot()
	end := strings.IndexByte(buf, protocol.Delimiter)
	if end < 0 {
		return player.StateAwaitingName
	}
	c.Consume(end + 1)

	name := protocol.SanitizeName(buf[:end])

	if s.banManager != nil {
		if banned, ban := s.banManager.Check(c.RemoteHost(), name); banned {
			s.logger.Info("rejected banned client", "remote", c.RemoteAddr(), "name", name, "reason", ban.Reason)
			s.reject(p)
			return player.StateClosed
		}
	}

	if s.players.ActiveCount() >= s.config.Server.MaxPlayers {
		s.logger.Warn("server full, rejecting client", "remote", c.RemoteAddr(), "name", name)
		s.reject(p)
		return player.StateClosed
	}

	var (
		tank world.Tank
		err  error
	)
	// the handshake is queued and the player activated under the world lock,
	// so no frame can be queued ahead of it
	s.gameState.Update(func(tx *gamestate.Tx) {
		tank = s.newTank(tx, tx.NextClientID(), name)

		var handshake string
		handshake, err = protocol.EncodeHandshake(tank.ID, tx.Size, tx.Walls(), tank)
		if err != nil {
			return
		}

		tx.UpsertTank(tank)
		if !network.Send(c, handshake) {
			s.logger.Warn("failed to send handshake", "id", tank.ID, "error", c.ErrorMessage())
		}
		p.Join(tank.ID, name)
	})
	if err != nil {
		s.logger.Error("failed to encode handshake", "error", err)
		s.reject(p)
		return player.StateClosed
	}

	s.callbacks.OnTankJoin(tank)

	// commands sent together with the name are not left waiting for the
	// next read
	return s.handleActive(p)
}

func (s *Server) newTank(tx *gamestate.Tx, id int, name string) world.Tank {
	g := s.config.Game
	loc, ok := physics.FreeTankLocation(tx.Rand(), tx.Size, tx.Walls(), g.TankSize, g.WallSize)
	if !ok {
		s.logger.Warn("no wall-free spawn location found", "id", id)
	}

	cmd := world.DefaultCommand()
	cmd.Aim = spawnAim

	return world.Tank{
		ID:          id,
		Location:    loc,
		Orientation: geometry.Zero,
		Aim:         spawnAim,
		Name:        name,
		HP:          g.StartingHP,
		Joined:      true,
		MainReady:   true,
		Command:     cmd,
	}
}

func (s *Server) reject(p *player.Player) {
	network.SendAndClose(p.Conn, "\n")
	s.players.Remove(p.ID())
}

// handleActive keeps the last valid command among the complete lines
// buffered; malformed lines are dropped.
func (s *Server) handleActive(p *player.Player) player.HandshakeState {
	c := p.Conn
	lines, consumed := protocol.SplitLines(c.Snapshot())
	c.Consume(consumed)

	var (
		cmd   world.Command
		valid bool
		bad   int
	)
	for _, line := range lines {
		parsed, err := protocol.ParseCommand(line)
		if err != nil {
			if !errors.Is(err, protocol.ErrEmptyLine) {
				bad++
			}
			continue
		}
		cmd, valid = parsed, true
	}

	if bad > 0 {
		total := p.AddMalformed(bad)
		s.logger.Debug("dropped malformed commands", "id", p.GetTankID(), "count", bad, "total", total)
	}

	if !valid {
		return player.StateActive
	}

	tankID := p.GetTankID()
	s.gameState.Update(func(tx *gamestate.Tx) {
		t, ok := tx.Tank(tankID)
		if !ok {
			return
		}
		t.Command = cmd
		tx.UpsertTank(t)
	})

	return player.StateActive
}
