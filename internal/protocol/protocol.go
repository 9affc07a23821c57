package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/siohaza/tankwars/internal/validation"
	"github.com/siohaza/tankwars/internal/world"
)

const Delimiter = '\n'

var (
	ErrEmptyLine        = errors.New("empty line")
	ErrMalformedCommand = errors.New("malformed command")
	ErrUnknownObject    = errors.New("unknown object")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindTank
	KindPowerUp
	KindProjectile
	KindBeam
	KindWall
)

func (k Kind) String() string {
	switch k {
	case KindTank:
		return "tank"
	case KindPowerUp:
		return "power"
	case KindProjectile:
		return "proj"
	case KindBeam:
		return "beam"
	case KindWall:
		return "wall"
	default:
		return "unknown"
	}
}

// classification order matters only for malformed lines carrying several keys
var kindKeys = []struct {
	key  string
	kind Kind
}{
	{"tank", KindTank},
	{"power", KindPowerUp},
	{"proj", KindProjectile},
	{"beam", KindBeam},
	{"wall", KindWall},
}

// EncodeLine marshals v as one JSON line including the trailing newline.
func EncodeLine(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return string(data) + string(Delimiter), nil
}

// SplitLines returns the complete lines in buf (without delimiters) and the
// number of bytes they span. A trailing partial line is left unconsumed.
func SplitLines(buf string) ([]string, int) {
	end := strings.LastIndexByte(buf, Delimiter)
	if end < 0 {
		return nil, 0
	}

	parts := strings.Split(buf[:end], string(Delimiter))
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, strings.TrimSuffix(p, "\r"))
	}
	return lines, end + 1
}

// ParseCommand decodes a control line. Absent fields take their defaults.
func ParseCommand(line string) (world.Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return world.Command{}, ErrEmptyLine
	}

	cmd := world.DefaultCommand()
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		return world.Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	cmd, err := validation.SanitizeCommand(cmd)
	if err != nil {
		return world.Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return cmd, nil
}

func EncodeCommand(cmd world.Command) (string, error) {
	return EncodeLine(cmd)
}

// Classify reports which entity a server line describes.
func Classify(line string) Kind {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return KindUnknown
	}
	for _, k := range kindKeys {
		if _, ok := fields[k.key]; ok {
			return k.kind
		}
	}
	return KindUnknown
}

// Object is one decoded server line; only the field matching Kind is set.
type Object struct {
	Kind       Kind
	Tank       world.Tank
	PowerUp    world.PowerUp
	Projectile world.Projectile
	Beam       world.Beam
	Wall       world.Wall
}

func DecodeObject(line string) (Object, error) {
	obj := Object{Kind: Classify(line)}
	data := []byte(line)

	var err error
	switch obj.Kind {
	case KindTank:
		err = json.Unmarshal(data, &obj.Tank)
	case KindPowerUp:
		err = json.Unmarshal(data, &obj.PowerUp)
	case KindProjectile:
		err = json.Unmarshal(data, &obj.Projectile)
	case KindBeam:
		err = json.Unmarshal(data, &obj.Beam)
	case KindWall:
		err = json.Unmarshal(data, &obj.Wall)
	default:
		return obj, fmt.Errorf("%w: %q", ErrUnknownObject, line)
	}
	if err != nil {
		return obj, fmt.Errorf("failed to decode %s: %w", obj.Kind, err)
	}
	return obj, nil
}

// EncodeHandshake builds the greeting a client receives after sending its name.
func EncodeHandshake(clientID, arenaSize int, walls []world.Wall, tank world.Tank) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(strconv.Itoa(clientID))
	buf.WriteByte(Delimiter)
	buf.WriteString(strconv.Itoa(arenaSize))
	buf.WriteByte(Delimiter)

	for _, w := range walls {
		if err := writeLine(&buf, w); err != nil {
			return "", err
		}
	}
	if err := writeLine(&buf, tank); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EncodeFrame serializes one tick of world state.
func EncodeFrame(tanks []world.Tank, projectiles []world.Projectile, beams []world.Beam, powerUps []world.PowerUp) (string, error) {
	var buf bytes.Buffer

	for _, t := range tanks {
		if err := writeLine(&buf, t); err != nil {
			return "", err
		}
	}
	for _, p := range projectiles {
		if err := writeLine(&buf, p); err != nil {
			return "", err
		}
	}
	for _, b := range beams {
		if err := writeLine(&buf, b); err != nil {
			return "", err
		}
	}
	for _, p := range powerUps {
		if err := writeLine(&buf, p); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func writeLine(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", v, err)
	}
	buf.Write(data)
	buf.WriteByte(Delimiter)
	return nil
}

// ParseInt reads a bare integer handshake line.
func ParseInt(line string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("failed to parse handshake value %q: %w", line, err)
	}
	return n, nil
}
