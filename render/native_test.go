package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grayTheme returns steps as a gray level.
var grayTheme = theme.Builtin{
	Name:  "gray",
	Steps: 4,
	Color: func(steps uint32, _, _ float64) uint32 {
		return steps | steps<<8 | steps<<16
	},
}

func TestEscapeSteps(t *testing.T) {
	for _, max := range []uint32{1, 4, 100, 1000} {
		assert.Equal(t, max, EscapeSteps(0, 0, max), "origin never escapes")
		assert.Equal(t, uint32(1), EscapeSteps(2, 0, max), "2+0i escapes after one step")
	}
	assert.Equal(t, uint32(0), EscapeSteps(0, 0, 0))
	assert.Equal(t, uint32(100), EscapeSteps(-1, 0, 100), "-1 cycles between 0 and -1")
	assert.Equal(t, uint32(1), EscapeSteps(-2, -2, 100))
}

func TestPixelDistance(t *testing.T) {
	assert.Equal(t, 1.0, NewViewport(0, 0, 0).PixelDistance())
	assert.Equal(t, 0.125, NewViewport(0, 0, 3).PixelDistance())
	assert.Equal(t, 4.0, NewViewport(0, 0, -2).PixelDistance())
	assert.InDelta(t, 0.7071067811865476, NewViewport(0, 0, 0.5).PixelDistance(), 1e-15)
}

func TestViewportPoint(t *testing.T) {
	vp := NewViewport(-0.5, 0.25, 1)
	c := vp.Point(2, 2, 4, 4)
	assert.Equal(t, -0.5, c.X())
	assert.Equal(t, 0.25, c.Y())

	c = vp.Point(0, 3, 4, 4)
	assert.Equal(t, -1.5, c.X())
	assert.Equal(t, 0.75, c.Y())

	// odd sizes center between pixels
	c = vp.Point(0, 0, 3, 3)
	assert.Equal(t, -1.25, c.X())
}

func TestNativeScenario(t *testing.T) {
	img := pixels.New(4, 4)
	var progress []float64

	err := Native(context.Background(), img, grayTheme, NewViewport(0, 0, 0), func(p float64) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	i := (4*2 + 2) * 4
	assert.Equal(t, []byte{4, 4, 4, 255}, img.Pix()[i:i+4], "pixel (2,2) is the origin")
	assert.Less(t, img.Pix()[0], byte(4), "far corner escapes sooner")

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, progress)
	assert.True(t, img.Opaque())
}

func TestNativeDeterministic(t *testing.T) {
	vp := NewViewport(-0.75, 0.1, 5)
	th, err := theme.LookupBuiltin("position")
	require.NoError(t, err)

	a := pixels.New(37, 23)
	b := pixels.New(37, 23)
	require.NoError(t, Native(context.Background(), a, th, vp, nil))
	require.NoError(t, Native(context.Background(), b, th, vp, nil))
	assert.Equal(t, a.Pix(), b.Pix())
}

type failingTheme struct {
	theme.Builtin
	err error
}

func (f failingTheme) ColorPixel(context.Context, uint32, float64, float64) (uint32, error) {
	return 0, f.err
}

func TestNativeThemeError(t *testing.T) {
	errTheme := errors.New("theme exploded")
	img := pixels.New(2, 2)

	err := Native(context.Background(), img, failingTheme{Builtin: grayTheme, err: errTheme}, NewViewport(0, 0, 0), nil)
	assert.ErrorIs(t, err, errTheme)
	assert.Equal(t, make([]byte, 16), img.Pix(), "nothing drawn")
}

func TestNativeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	img := pixels.New(4, 4)

	rows := 0
	err := Native(ctx, img, grayTheme, NewViewport(0, 0, 0), func(float64) {
		rows++
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rows)
}

func TestNativeNilTheme(t *testing.T) {
	var p *theme.Plugin
	err := Native(context.Background(), pixels.New(1, 1), p, NewViewport(0, 0, 0), nil)
	assert.ErrorIs(t, err, theme.ErrThemeNotLoaded)
}
