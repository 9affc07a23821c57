package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/siohaza/tankwars/internal/network"
	"github.com/siohaza/tankwars/internal/protocol"
	"github.com/siohaza/tankwars/internal/validation"
	"github.com/siohaza/tankwars/internal/world"
	"github.com/siohaza/tankwars/pkg/config"
)

var ErrRejected = errors.New("server rejected the connection")

type stage int

const (
	stageID stage = iota
	stageSize
	stageWalls
	stagePlaying
)

// FrameFunc is called after every received frame with the mirrored world and
// the client's tank id. The returned command is sent to the server.
type FrameFunc func(w *world.World, id int) world.Command

// Client is the player side of the protocol. It mirrors the server's world
// from the frames it receives.
type Client struct {
	port    int
	logger  *slog.Logger
	onFrame FrameFunc

	mu    sync.Mutex
	conn  *network.Conn
	world *world.World
	stage stage
	id    int
	size  int
	name  string

	frames uint64

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	doneOnce  sync.Once
	err       error
}

type Option func(*Client)

func WithPort(port int) Option {
	return func(c *Client) { c.port = port }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithOnFrame(fn FrameFunc) Option {
	return func(c *Client) { c.onFrame = fn }
}

func New(opts ...Option) *Client {
	c := &Client{
		port:  config.GamePort,
		id:    -1,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Connect dials the server, sends name and blocks until the handshake has
// been received.
func (c *Client) Connect(ctx context.Context, host, name string) error {
	conn, err := network.Dial(ctx, host, c.port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.name = name
	c.mu.Unlock()

	conn.SetHandler(c.onData)
	if !network.Send(conn, name+string(protocol.Delimiter)) {
		conn.Close()
		return fmt.Errorf("failed to send name: %s", conn.ErrorMessage())
	}
	network.Receive(conn)

	select {
	case <-c.ready:
		c.logger.Info("joined server", "host", host, "id", c.ID(), "universe_size", c.ArenaSize())
		return nil
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		c.Close()
		return fmt.Errorf("failed to complete handshake: %w", ctx.Err())
	}
}

func (c *Client) ID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) ArenaSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Client) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// View runs fn with the mirrored world. fn must not retain w.
func (c *Client) View(fn func(w *world.World)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.world != nil {
		fn(c.world)
	}
}

// Done is closed when the connection fails or is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.fail(network.ErrConnClosed)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) fail(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) onData(conn *network.Conn) {
	if conn.ErrorOccurred() {
		c.fail(conn.Err())
		return
	}

	lines, consumed := protocol.SplitLines(conn.Snapshot())
	conn.Consume(consumed)

	c.mu.Lock()
	framed, err := c.apply(lines)
	var (
		cmd world.Command
		id  = c.id
	)
	if framed {
		c.frames++
		cmd = world.DefaultCommand()
		if c.onFrame != nil {
			cmd = c.onFrame(c.world, id)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.fail(err)
		conn.Close()
		return
	}

	if framed {
		line, err := protocol.EncodeCommand(cmd)
		if err != nil {
			c.logger.Error("failed to encode command", "error", err)
		} else if !network.Send(conn, line) {
			c.logger.Debug("failed to send command", "error", conn.ErrorMessage())
		}
	}

	network.Receive(conn)
}

// apply feeds received lines through the handshake and frame mirroring. It
// reports whether any frame data was applied.
func (c *Client) apply(lines []string) (bool, error) {
	framed := false
	beamsCleared := false

	for _, line := range lines {
		switch c.stage {
		case stageID:
			id, err := protocol.ParseInt(line)
			if err != nil {
				return false, fmt.Errorf("%w: %v", ErrRejected, err)
			}
			c.id = id
			c.stage = stageSize

		case stageSize:
			size, err := protocol.ParseInt(line)
			if err != nil {
				return false, err
			}
			c.size = size
			c.world = world.New(size)
			c.stage = stageWalls

		case stageWalls:
			obj, err := protocol.DecodeObject(line)
			if err != nil {
				return false, fmt.Errorf("failed to read handshake: %w", err)
			}
			switch obj.Kind {
			case protocol.KindWall:
				if !validation.IsValidWall(obj.Wall) {
					c.logger.Warn("ignoring malformed wall", "wall", obj.Wall.ID)
					continue
				}
				c.world.UpsertWall(obj.Wall)
			case protocol.KindTank:
				c.world.UpsertTank(obj.Tank)
				c.stage = stagePlaying
				c.readyOnce.Do(func() { close(c.ready) })
			}

		case stagePlaying:
			// beams live for exactly one frame
			if !beamsCleared {
				for _, b := range c.world.Beams() {
					c.world.RemoveBeam(b.ID)
				}
				beamsCleared = true
			}
			if c.mirror(line) {
				framed = true
			}
		}
	}

	return framed, nil
}

func (c *Client) mirror(line string) bool {
	obj, err := protocol.DecodeObject(line)
	if err != nil {
		c.logger.Debug("skipping unreadable line", "error", err)
		return false
	}

	w := c.world
	switch obj.Kind {
	case protocol.KindTank:
		if obj.Tank.Disconnected {
			w.RemoveTank(obj.Tank.ID)
		} else {
			w.UpsertTank(obj.Tank)
		}
	case protocol.KindProjectile:
		if obj.Projectile.Died {
			w.RemoveProjectile(obj.Projectile.ID)
		} else {
			w.UpsertProjectile(obj.Projectile)
		}
	case protocol.KindPowerUp:
		if obj.PowerUp.Died {
			w.RemovePowerUp(obj.PowerUp.ID)
		} else {
			w.UpsertPowerUp(obj.PowerUp)
		}
	case protocol.KindBeam:
		w.UpsertBeam(obj.Beam)
	case protocol.KindWall:
		w.UpsertWall(obj.Wall)
	}
	return true
}

func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}
