package theme

import (
	"context"
	"math"
	"testing"

	"github.com/stewi1014/wasmfractal/internal/wasmtest"
	"github.com/stewi1014/wasmfractal/wasmhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTheme(t *testing.T, wasm []byte) *Plugin {
	ctx := context.Background()
	loader := wasmhost.NewLoader(wasmhost.Config{})
	t.Cleanup(func() { loader.Close(ctx) })

	p, err := Load(ctx, loader, wasm)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close(ctx) })
	return p
}

func TestPluginGray(t *testing.T) {
	ctx := context.Background()
	p := loadTheme(t, wasmtest.GrayTheme(4))

	steps, err := p.MaxSteps(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), steps)

	color, err := p.ColorPixel(ctx, 3, -1.5, 0.25)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x030303), color)
}

func TestPlugin64BitSteps(t *testing.T) {
	ctx := context.Background()
	p := loadTheme(t, wasmtest.GrayTheme64(256))

	steps, err := p.MaxSteps(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(256), steps)

	color, err := p.ColorPixel(ctx, 7, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x070707), color)
}

func TestPluginRejectsWrongExports(t *testing.T) {
	ctx := context.Background()
	loader := wasmhost.NewLoader(wasmhost.Config{})
	defer loader.Close(ctx)

	_, err := Load(ctx, loader, wasmtest.Adder())
	assert.ErrorIs(t, err, wasmhost.ErrUnknownExport)

	var m wasmtest.Module
	m.Export("max_steps", m.Func(nil, []byte{wasmtest.F64}, nil, wasmtest.Asm{}.F64(1)))
	m.Export("color_pixel", m.Func([]byte{wasmtest.I32, wasmtest.F64, wasmtest.F64}, []byte{wasmtest.I32}, nil, wasmtest.Asm{}.I32(0)))
	_, err = Load(ctx, loader, m.Bytes())
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = Load(ctx, loader, []byte{0, 'a', 's', 'm'})
	assert.ErrorIs(t, err, wasmhost.ErrInvalidModule)
}

func TestPluginTrap(t *testing.T) {
	p := loadTheme(t, wasmtest.TrappingTheme())
	_, err := p.ColorPixel(context.Background(), 1, 0, 0)
	assert.ErrorIs(t, err, wasmhost.ErrTrap)
}

func TestNotLoaded(t *testing.T) {
	ctx := context.Background()

	var p *Plugin
	_, err := p.MaxSteps(ctx)
	assert.ErrorIs(t, err, ErrThemeNotLoaded)
	_, err = p.ColorPixel(ctx, 1, 0, 0)
	assert.ErrorIs(t, err, ErrThemeNotLoaded)

	loaded := loadTheme(t, wasmtest.GrayTheme(4))
	require.NoError(t, loaded.Close(ctx))
	_, err = loaded.MaxSteps(ctx)
	assert.ErrorIs(t, err, ErrThemeNotLoaded)
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"simple", "red", "green", "blue", "position"} {
		b, err := LookupBuiltin(name)
		require.NoError(t, err, name)
		steps, err := b.MaxSteps(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(256), steps, name)
	}

	_, err := LookupBuiltin("demo")
	assert.ErrorIs(t, err, ErrNoSuchTheme)
	assert.Equal(t, 5, NumBuiltins())
	assert.Equal(t, "simple", GetBuiltin(0).Name)
}

func TestBuiltinColors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		steps  uint32
		re, im float64
		want   uint32
	}{
		{"simple", 5, 0, 0, RGB(5, 5, 5)},
		{"simple", 256, 0, 0, RGB(0, 0, 0)},
		{"red", 9, 0, 0, RGB(9, 0, 0)},
		{"green", 9, 0, 0, RGB(0, 9, 0)},
		{"blue", 9, 0, 0, RGB(0, 0, 9)},
		{"position", 3, -1, 0.5, RGB(128, 3, 64)},
		{"position", 3, 4, math.NaN(), RGB(255, 3, 0)},
	}

	for _, c := range cases {
		b, err := LookupBuiltin(c.name)
		require.NoError(t, err)
		got, err := b.ColorPixel(ctx, c.steps, c.re, c.im)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s(%v, %v, %v)", c.name, c.steps, c.re, c.im)
	}
}
