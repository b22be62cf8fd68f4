package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/theme"
	"github.com/stewi1014/wasmfractal/wasmhost"
)

// ImportModule is the module name kernels import host functions from.
const ImportModule = "env"

var (
	ErrNotRendering = errors.New("host function called outside render")
	ErrPainted      = errors.New("image already painted")
)

// Target is what a single render draws into and reports to.
type Target struct {
	Image *pixels.Buffer
	Theme theme.Theme

	// Progress receives every fraction the kernel reports. May be nil.
	Progress func(float64)
	// Paint is called with Image once the kernel has painted and returned cleanly. May be nil.
	Paint func(*pixels.Buffer)
}

// Binding answers a kernel's host imports from the Target of the render in progress.
//
// Host functions fail by panicking with an error; wazero turns the panic into a
// trap of the calling module and keeps the error in the chain.
type Binding struct {
	target  *Target
	painted bool
}

func (b *Binding) begin(t *Target) {
	b.target = t
	b.painted = false
}

func (b *Binding) end() {
	b.target = nil
}

func (b *Binding) current(name string) *Target {
	if b.target == nil {
		panic(fmt.Errorf("%s: %w", name, ErrNotRendering))
	}
	return b.target
}

// Imports is the complete host ABI offered to a kernel.
func (b *Binding) Imports() *wasmhost.ImportTable {
	return &wasmhost.ImportTable{
		Module: ImportModule,
		Funcs: []wasmhost.HostFunc{
			{Name: "canvas_width", Func: b.canvasWidth},
			{Name: "canvas_height", Func: b.canvasHeight},
			{Name: "draw_pixel", Func: b.drawPixel},
			{Name: "color_pixel", Func: b.colorPixel},
			{Name: "max_steps", Func: b.maxSteps},
			{Name: "progress", Func: b.progress},
			{Name: "paint", Func: b.paint},
		},
	}
}

func (b *Binding) canvasWidth(context.Context) uint32 {
	return b.current("canvas_width").Image.Width()
}

func (b *Binding) canvasHeight(context.Context) uint32 {
	return b.current("canvas_height").Image.Height()
}

func (b *Binding) drawPixel(_ context.Context, x, y, color uint32) {
	t := b.current("draw_pixel")
	if b.painted {
		panic(fmt.Errorf("draw_pixel(%d, %d): %w", x, y, ErrPainted))
	}
	if err := t.Image.Draw(x, y, color); err != nil {
		panic(fmt.Errorf("draw_pixel(%d, %d): %w", x, y, err))
	}
}

func (b *Binding) colorPixel(ctx context.Context, steps uint32, re, im float64) uint32 {
	color, err := b.current("color_pixel").Theme.ColorPixel(ctx, steps, re, im)
	if err != nil {
		panic(fmt.Errorf("color_pixel: %w", err))
	}
	return color
}

func (b *Binding) maxSteps(ctx context.Context) uint32 {
	steps, err := b.current("max_steps").Theme.MaxSteps(ctx)
	if err != nil {
		panic(fmt.Errorf("max_steps: %w", err))
	}
	return steps
}

func (b *Binding) progress(_ context.Context, fraction float64) {
	if t := b.current("progress"); t.Progress != nil {
		t.Progress(fraction)
	}
}

func (b *Binding) paint(context.Context) {
	b.current("paint")
	if b.painted {
		panic(fmt.Errorf("paint: %w", ErrPainted))
	}
	b.painted = true
}
