package world

import "github.com/siohaza/tankwars/pkg/geometry"

type Movement string

const (
	MoveNone  Movement = "none"
	MoveLeft  Movement = "left"
	MoveRight Movement = "right"
	MoveUp    Movement = "up"
	MoveDown  Movement = "down"
)

func (m Movement) Valid() bool {
	switch m {
	case MoveNone, MoveLeft, MoveRight, MoveUp, MoveDown:
		return true
	}
	return false
}

type FireMode string

const (
	FireNone FireMode = "none"
	FireMain FireMode = "main"
	FireAlt  FireMode = "alt"
)

func (f FireMode) Valid() bool {
	switch f {
	case FireNone, FireMain, FireAlt:
		return true
	}
	return false
}

// Command is the control input a client sends once per frame.
type Command struct {
	Moving Movement          `json:"moving"`
	Fire   FireMode          `json:"fire"`
	Aim    geometry.Vector2D `json:"tdir"`
}

func DefaultCommand() Command {
	return Command{Moving: MoveNone, Fire: FireNone, Aim: geometry.Up}
}

type Tank struct {
	ID           int               `json:"tank"`
	Location     geometry.Vector2D `json:"loc"`
	Orientation  geometry.Vector2D `json:"bdir"`
	Aim          geometry.Vector2D `json:"tdir"`
	Name         string            `json:"name"`
	HP           int               `json:"hp"`
	Score        int               `json:"score"`
	Died         bool              `json:"died"`
	Disconnected bool              `json:"dc"`
	Joined       bool              `json:"join"`

	// server side only
	Dead         bool    `json:"-"`
	MainReady    bool    `json:"-"`
	AltReady     bool    `json:"-"`
	AttackDelay  int     `json:"-"`
	RespawnDelay int     `json:"-"`
	Command      Command `json:"-"`
	SpeedBoost   bool    `json:"-"`
	BoostFrames  int     `json:"-"`
}

func (t Tank) Alive() bool {
	return !t.Dead && t.HP > 0
}

type Projectile struct {
	ID        int               `json:"proj"`
	Location  geometry.Vector2D `json:"loc"`
	Direction geometry.Vector2D `json:"dir"`
	Died      bool              `json:"died"`
	Owner     int               `json:"owner"`
}

type Beam struct {
	ID        int               `json:"beam"`
	Origin    geometry.Vector2D `json:"org"`
	Direction geometry.Vector2D `json:"dir"`
	Owner     int               `json:"owner"`
}

type PowerUp struct {
	ID       int               `json:"power"`
	Location geometry.Vector2D `json:"loc"`
	Died     bool              `json:"died"`
}

// Wall is an axis-aligned segment; P1 and P2 share an x or a y coordinate.
type Wall struct {
	ID int               `json:"wall"`
	P1 geometry.Vector2D `json:"p1"`
	P2 geometry.Vector2D `json:"p2"`
}

func (w Wall) Vertical() bool {
	return w.P1.X == w.P2.X
}

func (w Wall) Horizontal() bool {
	return w.P1.Y == w.P2.Y
}
