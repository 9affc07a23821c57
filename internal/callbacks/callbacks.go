package callbacks

import (
	"log/slog"
	"sync"

	"github.com/siohaza/tankwars/internal/world"
)

// Callbacks receives game events. The server dispatches them after each tick
// transaction, outside the world lock.
type Callbacks interface {
	OnConnect(connID uint64, remote string)
	OnDisconnect(t world.Tank)
	OnTankJoin(t world.Tank)
	OnTankKill(killer, victim world.Tank)
	OnTankSpawn(t world.Tank)
	OnTankFire(t world.Tank)
	OnPowerUpCollect(t world.Tank)
	OnBeam(b world.Beam)
}

type DefaultCallbacks struct{}

func (d *DefaultCallbacks) OnConnect(connID uint64, remote string) {}
func (d *DefaultCallbacks) OnDisconnect(t world.Tank)              {}
func (d *DefaultCallbacks) OnTankJoin(t world.Tank)                {}
func (d *DefaultCallbacks) OnTankKill(killer, victim world.Tank)   {}
func (d *DefaultCallbacks) OnTankSpawn(t world.Tank)               {}
func (d *DefaultCallbacks) OnTankFire(t world.Tank)                {}
func (d *DefaultCallbacks) OnPowerUpCollect(t world.Tank)          {}
func (d *DefaultCallbacks) OnBeam(b world.Beam)                    {}

type CallbackChain struct {
	callbacks []Callbacks
	mu        sync.RWMutex
}

func NewCallbackChain() *CallbackChain {
	return &CallbackChain{
		callbacks: make([]Callbacks, 0),
	}
}

func (c *CallbackChain) Register(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *CallbackChain) each(fn func(Callbacks)) {
	c.mu.RLock()
	cbs := c.callbacks
	c.mu.RUnlock()
	for _, cb := range cbs {
		fn(cb)
	}
}

func (c *CallbackChain) OnConnect(connID uint64, remote string) {
	c.each(func(cb Callbacks) { cb.OnConnect(connID, remote) })
}

func (c *CallbackChain) OnDisconnect(t world.Tank) {
	c.each(func(cb Callbacks) { cb.OnDisconnect(t) })
}

func (c *CallbackChain) OnTankJoin(t world.Tank) {
	c.each(func(cb Callbacks) { cb.OnTankJoin(t) })
}

func (c *CallbackChain) OnTankKill(killer, victim world.Tank) {
	c.each(func(cb Callbacks) { cb.OnTankKill(killer, victim) })
}

func (c *CallbackChain) OnTankSpawn(t world.Tank) {
	c.each(func(cb Callbacks) { cb.OnTankSpawn(t) })
}

func (c *CallbackChain) OnTankFire(t world.Tank) {
	c.each(func(cb Callbacks) { cb.OnTankFire(t) })
}

func (c *CallbackChain) OnPowerUpCollect(t world.Tank) {
	c.each(func(cb Callbacks) { cb.OnPowerUpCollect(t) })
}

func (c *CallbackChain) OnBeam(b world.Beam) {
	c.each(func(cb Callbacks) { cb.OnBeam(b) })
}

// LogCallbacks writes every event to a logger at debug level, joins and
// kills at info.
type LogCallbacks struct {
	DefaultCallbacks
	logger *slog.Logger
}

func NewLogCallbacks(logger *slog.Logger) *LogCallbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCallbacks{logger: logger}
}

func (l *LogCallbacks) OnConnect(connID uint64, remote string) {
	l.logger.Debug("client connected", "conn", connID, "remote", remote)
}

func (l *LogCallbacks) OnDisconnect(t world.Tank) {
	l.logger.Info("player disconnected", "id", t.ID, "name", t.Name, "score", t.Score)
}

func (l *LogCallbacks) OnTankJoin(t world.Tank) {
	l.logger.Info("player joined", "id", t.ID, "name", t.Name)
}

func (l *LogCallbacks) OnTankKill(killer, victim world.Tank) {
	if killer.ID < 0 {
		l.logger.Info("tank destroyed", "victim", victim.Name)
		return
	}
	l.logger.Info("tank destroyed", "killer", killer.Name, "victim", victim.Name, "score", killer.Score)
}

func (l *LogCallbacks) OnTankSpawn(t world.Tank) {
	l.logger.Debug("tank respawned", "id", t.ID, "loc", t.Location.String())
}

func (l *LogCallbacks) OnPowerUpCollect(t world.Tank) {
	l.logger.Debug("power-up collected", "id", t.ID)
}

func (l *LogCallbacks) OnBeam(b world.Beam) {
	l.logger.Debug("beam fired", "owner", b.Owner)
}
