package kernel

import (
	"context"
	"testing"

	"github.com/stewi1014/wasmfractal/internal/wasmtest"
	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/render"
	"github.com/stewi1014/wasmfractal/theme"
	"github.com/stewi1014/wasmfractal/wasmhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T) *wasmhost.Loader {
	loader := wasmhost.NewLoader(wasmhost.Config{})
	t.Cleanup(func() { loader.Close(context.Background()) })
	return loader
}

func loadKernel(t *testing.T, loader *wasmhost.Loader, wasm []byte) *Plugin {
	ctx := context.Background()
	p, err := Load(ctx, loader, wasm)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close(ctx) })
	return p
}

func loadGray(t *testing.T, loader *wasmhost.Loader, maxSteps int32) *theme.Plugin {
	ctx := context.Background()
	th, err := theme.Load(ctx, loader, wasmtest.GrayTheme(maxSteps))
	require.NoError(t, err)
	t.Cleanup(func() { th.Close(ctx) })
	return th
}

// recorder is a Target that remembers what the kernel reported.
type recorder struct {
	progress []float64
	painted  []*pixels.Buffer
}

func (r *recorder) target(img *pixels.Buffer, th theme.Theme) Target {
	return Target{
		Image:    img,
		Theme:    th,
		Progress: func(p float64) { r.progress = append(r.progress, p) },
		Paint:    func(b *pixels.Buffer) { r.painted = append(r.painted, b) },
	}
}

func TestKernelMatchesNative(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.EscapeKernel())

	position, err := theme.LookupBuiltin("position")
	require.NoError(t, err)

	themes := map[string]theme.Theme{
		"wasm gray": loadGray(t, loader, 64),
		"position":  position,
	}
	viewports := []render.Viewport{
		render.NewViewport(0, 0, 0),
		render.NewViewport(-0.75, 0.1, 5),
		render.NewViewport(-1.25, 0.02, 9),
	}

	for name, th := range themes {
		for _, vp := range viewports {
			want := pixels.New(23, 17)
			require.NoError(t, render.Native(ctx, want, th, vp, nil))

			var r recorder
			got := pixels.New(23, 17)
			require.NoError(t, k.Render(ctx, r.target(got, th), vp))

			assert.Equal(t, want.Pix(), got.Pix(), "%s at %+v", name, vp)
			require.Len(t, r.painted, 1)
			assert.Same(t, got, r.painted[0])
			assert.Len(t, r.progress, 17)
			assert.Equal(t, 1.0, r.progress[len(r.progress)-1])
		}
	}
}

func TestKernelScenario(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.EscapeKernel())

	var r recorder
	img := pixels.New(4, 4)
	require.NoError(t, k.Render(ctx, r.target(img, loadGray(t, loader, 4)), render.NewViewport(0, 0, 0)))

	i := (4*2 + 2) * 4
	assert.Equal(t, []byte{4, 4, 4, 255}, img.Pix()[i:i+4])
	assert.Less(t, img.Pix()[0], byte(4))
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, r.progress)
}

func TestKernelHostCallbacks(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.PixelKernel(1, 0))

	var r recorder
	img := pixels.New(2, 1)
	require.NoError(t, k.Render(ctx, r.target(img, loadGray(t, loader, 7)), render.NewViewport(0, 0, 0)))

	assert.Equal(t, []byte{0, 0, 0, 0, 7, 7, 7, 255}, img.Pix())
	assert.Equal(t, []float64{1}, r.progress)
	assert.Len(t, r.painted, 1)
}

func TestKernelOutOfBounds(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.PixelKernel(4, 0))

	var r recorder
	img := pixels.New(4, 4)
	err := k.Render(ctx, r.target(img, loadGray(t, loader, 4)), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.ErrorIs(t, err, pixels.ErrOutOfBounds)
	assert.Empty(t, r.painted)
	assert.Empty(t, r.progress)
}

func TestKernelTrapDoesNotPaint(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.TrapKernel())
	gray := loadGray(t, loader, 4)

	var r recorder
	err := k.Render(ctx, r.target(pixels.New(2, 2), gray), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.ErrorIs(t, err, wasmhost.ErrTrap)
	assert.Empty(t, r.painted)
	assert.Equal(t, []float64{0.5}, r.progress)

	// the kernel survives its own trap
	err = k.Render(ctx, r.target(pixels.New(2, 2), gray), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.NotErrorIs(t, err, wasmhost.ErrClosed)
}

func TestKernelThemeFault(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.PixelKernel(0, 0))

	th, err := theme.Load(ctx, loader, wasmtest.TrappingTheme())
	require.NoError(t, err)
	defer th.Close(ctx)

	var r recorder
	err = k.Render(ctx, r.target(pixels.New(1, 1), th), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.ErrorIs(t, err, wasmhost.ErrTrap)
	assert.Empty(t, r.painted)
}

func TestKernelPaintRules(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	gray := loadGray(t, loader, 4)

	var r recorder
	silent := loadKernel(t, loader, wasmtest.SilentKernel())
	err := silent.Render(ctx, r.target(pixels.New(1, 1), gray), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrNoPaint)
	assert.Empty(t, r.painted)

	twice := loadKernel(t, loader, wasmtest.DoublePaintKernel())
	err = twice.Render(ctx, r.target(pixels.New(1, 1), gray), render.NewViewport(0, 0, 0))
	assert.ErrorIs(t, err, ErrModuleFault)
	assert.ErrorIs(t, err, ErrPainted)
	assert.Empty(t, r.painted)
}

func TestKernelIntegerZoom(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)
	k := loadKernel(t, loader, wasmtest.IntZoomKernel())
	gray := loadGray(t, loader, 4)

	var r recorder
	img := pixels.New(1, 1)
	require.NoError(t, k.Render(ctx, r.target(img, gray), render.NewViewport(0, 0, 3.7)))
	assert.Equal(t, []byte{3, 0, 0, 255}, img.Pix())

	require.NoError(t, k.Render(ctx, r.target(img, gray), render.NewViewport(0, 0, 1e12)))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 255}, img.Pix())
	assert.Len(t, r.painted, 2)
}

func TestKernelLoadErrors(t *testing.T) {
	ctx := context.Background()
	loader := newLoader(t)

	_, err := Load(ctx, loader, wasmtest.ForeignImportKernel())
	assert.ErrorIs(t, err, wasmhost.ErrImportMismatch)

	_, err = Load(ctx, loader, wasmtest.MismatchedKernel())
	assert.ErrorIs(t, err, wasmhost.ErrImportMismatch)

	_, err = Load(ctx, loader, wasmtest.NoRenderKernel())
	assert.ErrorIs(t, err, wasmhost.ErrUnknownExport)

	_, err = Load(ctx, loader, []byte("not wasm"))
	assert.ErrorIs(t, err, wasmhost.ErrInvalidModule)

	_, err = Load(ctx, loader, wasmtest.VersionedKernel(2))
	assert.ErrorIs(t, err, ErrABIVersion)

	k, err := Load(ctx, loader, wasmtest.VersionedKernel(ABIVersion))
	require.NoError(t, err)
	require.NoError(t, k.Close(ctx))
}

func TestKernelImportsOutsideRender(t *testing.T) {
	_, err := Load(context.Background(), newLoader(t), wasmtest.InitKernel())
	assert.ErrorIs(t, err, wasmhost.ErrInvalidModule)
	assert.ErrorContains(t, err, ErrNotRendering.Error())
}

func TestKernelNotLoaded(t *testing.T) {
	ctx := context.Background()
	img := pixels.New(1, 1)

	var p *Plugin
	assert.ErrorIs(t, p.Render(ctx, Target{Image: img}, render.NewViewport(0, 0, 0)), ErrNotLoaded)

	k := loadKernel(t, newLoader(t), wasmtest.SilentKernel())
	assert.ErrorIs(t, k.Render(ctx, Target{Image: img}, render.NewViewport(0, 0, 0)), ErrMissingTarget)

	require.NoError(t, k.Close(ctx))
	assert.ErrorIs(t, k.Render(ctx, Target{Image: img}, render.NewViewport(0, 0, 0)), ErrNotLoaded)
}
