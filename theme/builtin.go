package theme

import (
	"context"
	"errors"
	"math"
)

var ErrNoSuchTheme = errors.New("no built-in theme with that name")

// PixelFunc colors a single point.
type PixelFunc func(steps uint32, re, im float64) uint32

// Builtin is a theme compiled into the host.
type Builtin struct {
	Name  string
	Steps uint32
	Color PixelFunc
}

var _ Theme = Builtin{}

func (b Builtin) MaxSteps(context.Context) (uint32, error) {
	return b.Steps, nil
}

func (b Builtin) ColorPixel(_ context.Context, steps uint32, re, im float64) (uint32, error) {
	if b.Color == nil {
		return 0, ErrThemeNotLoaded
	}
	return b.Color(steps, re, im), nil
}

var builtins []Builtin

func NewBuiltin(b Builtin) {
	builtins = append(builtins, b)
}

func NumBuiltins() int {
	return len(builtins)
}

func GetBuiltin(i int) Builtin {
	return builtins[i]
}

func LookupBuiltin(name string) (Builtin, error) {
	for _, b := range builtins {
		if b.Name == name {
			return b, nil
		}
	}
	return Builtin{}, ErrNoSuchTheme
}

// saturate converts like a saturating float-to-byte cast: NaN is 0, out of range values clamp.
func saturate(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(v)
	}
}
