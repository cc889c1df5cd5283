package trajectory

import (
	"fmt"
	"strconv"
	"strings"
)

// #region key-spaces

// Key is implemented by every state key space. Keys are comparable values
// used directly as map keys; String is only called at the JSON boundary.
type Key interface {
	comparable
	String() string
}

// FullKey binds position, local tile, and the four neighbor tiles.
// Its text form is read by the game engine and must not change.
type FullKey struct {
	X, Y  int
	Env   Tile
	Up    Tile
	Down  Tile
	Right Tile
	Left  Tile
}

// String renders "(x, y, env, up, down, right, left)".
func (k FullKey) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d, %d, %d, %d)", k.X, k.Y, k.Env, k.Up, k.Down, k.Right, k.Left)
}

// EnvKey drops position and keeps the local tile plus neighbors.
type EnvKey struct {
	Env   Tile
	Up    Tile
	Down  Tile
	Right Tile
	Left  Tile
}

// String renders "(env, up, down, right, left)".
func (k EnvKey) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d, %d)", k.Env, k.Up, k.Down, k.Right, k.Left)
}

// SurroundKey keeps only the four neighbor tiles.
type SurroundKey struct {
	Up    Tile
	Down  Tile
	Right Tile
	Left  Tile
}

// String renders "up,down,right,left".
func (k SurroundKey) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", k.Up, k.Down, k.Right, k.Left)
}

// #endregion key-spaces

// #region encoders

// FullKeyOf encodes s in the position-dependent key space.
func FullKeyOf(s Step) FullKey {
	return FullKey{X: s.Pos.X, Y: s.Pos.Y, Env: s.Env, Up: s.Up, Down: s.Down, Right: s.Right, Left: s.Left}
}

// EnvKeyOf encodes s in the environment-only key space.
func EnvKeyOf(s Step) EnvKey {
	return EnvKey{Env: s.Env, Up: s.Up, Down: s.Down, Right: s.Right, Left: s.Left}
}

// SurroundKeyOf encodes s in the surroundings-only key space.
func SurroundKeyOf(s Step) SurroundKey {
	return SurroundKey{Up: s.Up, Down: s.Down, Right: s.Right, Left: s.Left}
}

// #endregion encoders

// #region parse

// ParseFullKey is the inverse of FullKey.String.
func ParseFullKey(text string) (FullKey, error) {
	vals, err := parseTuple(text, 7)
	if err != nil {
		return FullKey{}, fmt.Errorf("parse full key %q: %w", text, err)
	}
	return FullKey{
		X: vals[0], Y: vals[1],
		Env: Tile(vals[2]), Up: Tile(vals[3]), Down: Tile(vals[4]), Right: Tile(vals[5]), Left: Tile(vals[6]),
	}, nil
}

// ParseEnvKey is the inverse of EnvKey.String.
func ParseEnvKey(text string) (EnvKey, error) {
	vals, err := parseTuple(text, 5)
	if err != nil {
		return EnvKey{}, fmt.Errorf("parse env key %q: %w", text, err)
	}
	return EnvKey{Env: Tile(vals[0]), Up: Tile(vals[1]), Down: Tile(vals[2]), Right: Tile(vals[3]), Left: Tile(vals[4])}, nil
}

func parseTuple(text string, n int) ([]int, error) {
	if !strings.HasPrefix(text, "(") || !strings.HasSuffix(text, ")") {
		return nil, fmt.Errorf("missing parentheses")
	}
	parts := strings.Split(text[1:len(text)-1], ", ")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(parts))
	}
	vals := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// #endregion parse
