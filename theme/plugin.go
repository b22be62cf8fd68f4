package theme

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewi1014/wasmfractal/wasmhost"
	"github.com/tetratelabs/wazero/api"
)

const (
	ExportMaxSteps   = "max_steps"
	ExportColorPixel = "color_pixel"
)

var ErrBadSignature = errors.New("theme export has unsupported signature")

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
	f64 = api.ValueTypeF64
)

// Plugin is a theme implemented by a WebAssembly module without imports.
//
// Two export shapes are accepted: max_steps() -> i32 with color_pixel(i32, f64, f64) -> i32,
// and the 64-bit step form max_steps() -> i64 with color_pixel(i64, f64, f64) -> i32.
type Plugin struct {
	module *wasmhost.Module
}

var _ Theme = (*Plugin)(nil)

func Load(ctx context.Context, loader *wasmhost.Loader, wasm []byte) (*Plugin, error) {
	module, err := loader.Load(ctx, "theme", wasm, nil)
	if err != nil {
		return nil, err
	}

	if err := checkExports(module); err != nil {
		module.Close(ctx)
		return nil, err
	}

	return &Plugin{module: module}, nil
}

func checkExports(m *wasmhost.Module) error {
	for _, name := range []string{ExportMaxSteps, ExportColorPixel} {
		if _, ok := m.Function(name); !ok {
			return fmt.Errorf("%w: %s", wasmhost.ErrUnknownExport, name)
		}
	}

	maxSteps := m.Signature(ExportMaxSteps, nil, []api.ValueType{i32}) ||
		m.Signature(ExportMaxSteps, nil, []api.ValueType{i64})
	if !maxSteps {
		return fmt.Errorf("%w: %s", ErrBadSignature, ExportMaxSteps)
	}

	colorPixel := m.Signature(ExportColorPixel, []api.ValueType{i32, f64, f64}, []api.ValueType{i32}) ||
		m.Signature(ExportColorPixel, []api.ValueType{i64, f64, f64}, []api.ValueType{i32})
	if !colorPixel {
		return fmt.Errorf("%w: %s", ErrBadSignature, ExportColorPixel)
	}
	return nil
}

func (p *Plugin) MaxSteps(ctx context.Context) (uint32, error) {
	if p == nil || p.module == nil {
		return 0, ErrThemeNotLoaded
	}

	results, err := p.module.Call(ctx, ExportMaxSteps)
	if err != nil {
		return 0, err
	}

	if p.module.Signature(ExportMaxSteps, nil, []api.ValueType{i64}) {
		steps := results[0]
		if steps > uint64(^uint32(0)) {
			steps = uint64(^uint32(0))
		}
		return uint32(steps), nil
	}
	return api.DecodeU32(results[0]), nil
}

func (p *Plugin) ColorPixel(ctx context.Context, steps uint32, re, im float64) (uint32, error) {
	if p == nil || p.module == nil {
		return 0, ErrThemeNotLoaded
	}

	// Both step widths take the zero-extended count in the low bits.
	results, err := p.module.Call(ctx, ExportColorPixel, uint64(steps), api.EncodeF64(re), api.EncodeF64(im))
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(results[0]), nil
}

// Closed reports whether the module is gone, either closed or stopped by a call timeout.
func (p *Plugin) Closed() bool {
	return p == nil || p.module == nil || p.module.Closed()
}

// Close unloads the module. Later calls fail with ErrThemeNotLoaded.
func (p *Plugin) Close(ctx context.Context) error {
	if p == nil || p.module == nil {
		return nil
	}
	err := p.module.Close(ctx)
	p.module = nil
	return err
}
