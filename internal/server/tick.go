package server

import (
	"github.com/siohaza/tankwars/internal/callbacks"
	"github.com/siohaza/tankwars/internal/gamemode"
	"github.com/siohaza/tankwars/internal/gamestate"
	"github.com/siohaza/tankwars/internal/network"
	"github.com/siohaza/tankwars/internal/physics"
	"github.com/siohaza/tankwars/internal/player"
	"github.com/siohaza/tankwars/internal/protocol"
	"github.com/siohaza/tankwars/internal/world"
)

// event is a callback invocation deferred until the world lock is released.
type event func(cb *callbacks.CallbackChain)

// Tick advances the simulation one frame and broadcasts the result. The whole
// frame runs inside one world transaction; callbacks fire afterwards.
func (s *Server) Tick() {
	var events []event
	emit := func(e event) { events = append(events, e) }

	s.gameState.Update(func(tx *gamestate.Tx) {
		s.pruneEntities(tx)
		s.spawnPowerUps(tx)
		s.updateAttacks(tx, emit)
		s.moveTanks(tx)
		s.advanceProjectiles(tx)
		s.resolveCollisions(tx, emit)
		s.broadcast(tx, emit)
		clearFlags(tx)
		tx.AdvanceFrame()
	})

	for _, e := range events {
		e(s.callbacks)
	}
}

// pruneEntities drops last frame's beams and anything that died.
func (s *Server) pruneEntities(tx *gamestate.Tx) {
	for _, b := range tx.Beams() {
		tx.RemoveBeam(b.ID)
	}
	for _, p := range tx.Projectiles() {
		if p.Died {
			tx.RemoveProjectile(p.ID)
		}
	}
	for _, pu := range tx.PowerUps() {
		if pu.Died {
			tx.RemovePowerUp(pu.ID)
		}
	}
}

// spawnPowerUps fills the arena on the first frame. Afterwards a power-up is
// added once the count has stayed below the maximum for powerup_delay frames.
func (s *Server) spawnPowerUps(tx *gamestate.Tx) {
	g := s.config.Game

	if !tx.PowerUpsSeeded() {
		for range g.MaxPowerUps {
			s.spawnPowerUp(tx)
		}
		tx.MarkPowerUpsSeeded()
		return
	}

	if tx.PowerUpCount() >= g.MaxPowerUps {
		tx.SetPowerUpDelay(0)
		return
	}

	if tx.PowerUpDelay() >= g.PowerUpDelay {
		s.spawnPowerUp(tx)
		tx.SetPowerUpDelay(0)
		return
	}
	tx.SetPowerUpDelay(tx.PowerUpDelay() + 1)
}

func (s *Server) spawnPowerUp(tx *gamestate.Tx) {
	loc, ok := physics.FreePowerUpLocation(tx.Rand(), tx.Size, tx.Walls(), s.config.Game.WallSize)
	if !ok {
		s.logger.Warn("no wall-free power-up location found")
		return
	}
	tx.UpsertPowerUp(world.PowerUp{ID: tx.NextPowerUpID(), Location: loc})
}

// updateAttacks handles firing for live tanks and the respawn countdown for
// dead ones. Parked tanks are skipped.
func (s *Server) updateAttacks(tx *gamestate.Tx, emit func(event)) {
	g := s.config.Game

	for _, t := range tx.Tanks() {
		if t.Disconnected {
			continue
		}

		if t.Dead {
			t.RespawnDelay++
			if t.RespawnDelay >= g.RespawnRate {
				t = s.respawn(tx, t)
				spawned := t
				emit(func(cb *callbacks.CallbackChain) { cb.OnTankSpawn(spawned) })
			}
			tx.UpsertTank(t)
			continue
		}

		if t.AttackDelay >= g.FramesPerShot {
			t.AttackDelay = 0
			t.MainReady = true
		} else {
			t.AttackDelay++
		}

		switch t.Command.Fire {
		case world.FireMain:
			if t.MainReady {
				t.MainReady = false
				tx.UpsertProjectile(world.Projectile{
					ID:        tx.NextProjectileID(),
					Location:  t.Location,
					Direction: t.Aim,
					Owner:     t.ID,
				})
				shooter := t
				emit(func(cb *callbacks.CallbackChain) { cb.OnTankFire(shooter) })
			}
		case world.FireAlt:
			if t.AltReady {
				t.AltReady = false
				t = s.applyAltEffect(tx, t, emit)
			}
		}

		tx.UpsertTank(t)
	}
}

func (s *Server) applyAltEffect(tx *gamestate.Tx, t world.Tank, emit func(event)) world.Tank {
	g := s.config.Game

	switch s.gameMode.AltEffect(tx.World, tx.Rand(), t) {
	case gamemode.EffectHeal:
		t.HP = g.StartingHP
	case gamemode.EffectSpeed:
		t.SpeedBoost = true
		t.BoostFrames = g.SpeedBoostFrames
	default:
		b := world.Beam{
			ID:        tx.NextBeamID(),
			Origin:    t.Location,
			Direction: t.Aim,
			Owner:     t.ID,
		}
		tx.UpsertBeam(b)
		emit(func(cb *callbacks.CallbackChain) { cb.OnBeam(b) })
	}
	return t
}

// respawn places a dead tank again, keeping its id, name and score.
func (s *Server) respawn(tx *gamestate.Tx, t world.Tank) world.Tank {
	fresh := s.newTank(tx, t.ID, t.Name)
	fresh.Score = t.Score
	fresh.Joined = false
	return fresh
}

// moveTanks applies each live tank's pending movement. The boost doubles
// speed only in extra mode.
func (s *Server) moveTanks(tx *gamestate.Tx) {
	g := s.config.Game
	walls := tx.Walls()

	for _, t := range tx.Tanks() {
		if t.Disconnected || !t.Alive() {
			continue
		}

		speed := g.EngineStrength
		if t.SpeedBoost && s.extended {
			speed *= 2
			if g.SpeedBoostFrames > 0 {
				t.BoostFrames--
				if t.BoostFrames <= 0 {
					t.SpeedBoost = false
				}
			}
		}

		t, _ = physics.MoveWithWalls(t, t.Command.Moving, speed, walls, g.TankSize, g.WallSize)
		t.Location = physics.Wrap(t.Location, tx.Size, g.TankSize, g.WallSize)
		if !t.Command.Aim.IsZero() {
			t.Aim = t.Command.Aim
		}
		// a movement command is used once; fire and aim persist
		t.Command.Moving = world.MoveNone

		tx.UpsertTank(t)
	}
}

func (s *Server) advanceProjectiles(tx *gamestate.Tx) {
	g := s.config.Game
	walls := tx.Walls()

	for _, p := range tx.Projectiles() {
		if p.Died {
			continue
		}
		tx.UpsertProjectile(physics.AdvanceProjectile(p, g.ProjectileSpeed, tx.Size, walls, g.WallSize))
	}
}

// resolveCollisions applies projectile, beam and power-up hits to live,
// connected tanks in id order.
func (s *Server) resolveCollisions(tx *gamestate.Tx, emit func(event)) {
	radius := s.config.Game.TankSize / 2

	for _, snapshot := range tx.Tanks() {
		if snapshot.Disconnected {
			continue
		}

		// re-read: crediting an earlier kill may have changed this tank's score
		t, _ := tx.Tank(snapshot.ID)

		for _, p := range tx.Projectiles() {
			if !t.Alive() {
				break
			}
			if p.Died || p.Owner == t.ID || !physics.CircleCollides(p.Location, t.Location, radius) {
				continue
			}

			p.Died = true
			tx.UpsertProjectile(p)

			t.HP--
			if t.HP <= 0 {
				t = s.kill(tx, t, p.Owner, emit)
			}
		}

		for _, b := range tx.Beams() {
			if !t.Alive() {
				break
			}
			if b.Owner == t.ID || !physics.RayCircleIntersects(b.Origin, b.Direction, t.Location, radius) {
				continue
			}
			t = s.kill(tx, t, b.Owner, emit)
		}

		for _, pu := range tx.PowerUps() {
			if !t.Alive() {
				break
			}
			if pu.Died || !physics.CircleCollides(pu.Location, t.Location, radius) {
				continue
			}

			pu.Died = true
			tx.UpsertPowerUp(pu)
			t.AltReady = true

			collector := t
			emit(func(cb *callbacks.CallbackChain) { cb.OnPowerUpCollect(collector) })
		}

		tx.UpsertTank(t)
	}
}

// kill marks victim dead and credits ownerID if that tank still exists. The
// owner is written back immediately; the victim is returned for the caller to
// store.
func (s *Server) kill(tx *gamestate.Tx, victim world.Tank, ownerID int, emit func(event)) world.Tank {
	victim.HP = 0
	victim.Dead = true
	victim.Died = true
	victim.RespawnDelay = 0
	victim.SpeedBoost = false

	killer, ok := tx.Tank(ownerID)
	if ok {
		killer.Score += s.gameMode.OnKill(tx.World, killer, victim)
		tx.UpsertTank(killer)
	} else {
		killer = world.Tank{ID: -1}
	}

	dead := victim
	emit(func(cb *callbacks.CallbackChain) { cb.OnTankKill(killer, dead) })
	return victim
}

// broadcast serializes the frame and sends it to every joined player. Broken
// connections are dropped and their tanks parked with dc set.
func (s *Server) broadcast(tx *gamestate.Tx, emit func(event)) {
	frame, err := protocol.EncodeFrame(tx.Tanks(), tx.Projectiles(), tx.Beams(), tx.PowerUps())
	if err != nil {
		s.logger.Error("failed to encode frame", "frame", tx.Frame(), "error", err)
		return
	}

	for _, p := range s.players.GetAll() {
		c := p.Conn
		broken := c.ErrorOccurred() || c.Closed()

		if !broken && p.IsActive() {
			broken = !network.Send(c, frame)
		}
		if !broken {
			continue
		}

		s.dropPlayer(tx, p, emit)
	}
}

func (s *Server) dropPlayer(tx *gamestate.Tx, p *player.Player, emit func(event)) {
	p.SetState(player.StateClosed)
	s.players.Remove(p.ID())
	p.Conn.Close()

	t, ok := tx.Tank(p.GetTankID())
	if !ok {
		return
	}
	t.Disconnected = true
	t.Command = world.DefaultCommand()
	tx.UpsertTank(t)

	s.logger.Debug("parked tank of broken connection", "id", t.ID, "error", p.Conn.ErrorMessage())
	parked := t
	emit(func(cb *callbacks.CallbackChain) { cb.OnDisconnect(parked) })
}

func clearFlags(tx *gamestate.Tx) {
	for _, t := range tx.Tanks() {
		if !t.Died && !t.Joined {
			continue
		}
		t.Died = false
		t.Joined = false
		tx.UpsertTank(t)
	}
}
