// Package kernel runs render kernels: WebAssembly modules that draw a whole
// frame themselves, calling back into the host for geometry, colors and progress.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stewi1014/wasmfractal/internal/logging"
	"github.com/stewi1014/wasmfractal/render"
	"github.com/stewi1014/wasmfractal/wasmhost"
	"github.com/tetratelabs/wazero/api"
)

// ABIVersion is the host ABI this package implements.
// A kernel exporting abi_version must return it.
const ABIVersion = 1

const (
	ExportRender     = "render"
	ExportABIVersion = "abi_version"
)

var (
	ErrModuleFault   = errors.New("render module fault")
	ErrNoPaint       = errors.New("render returned without painting")
	ErrNotLoaded     = errors.New("kernel not loaded")
	ErrBadSignature  = errors.New("kernel export has unsupported signature")
	ErrABIVersion    = errors.New("unsupported kernel ABI version")
	ErrMissingTarget = errors.New("render target needs an image and a theme")
)

var (
	renderFloatZoom = []api.ValueType{api.ValueTypeF64, api.ValueTypeF64, api.ValueTypeF64}
	renderIntZoom   = []api.ValueType{api.ValueTypeF64, api.ValueTypeF64, api.ValueTypeI32}
)

// Plugin is a loaded render kernel.
type Plugin struct {
	module  *wasmhost.Module
	binding *Binding
	intZoom bool
}

func Load(ctx context.Context, loader *wasmhost.Loader, wasm []byte) (*Plugin, error) {
	binding := &Binding{}
	module, err := loader.Load(ctx, "kernel", wasm, binding.Imports())
	if err != nil {
		return nil, err
	}

	p := &Plugin{module: module, binding: binding}
	if err := p.checkExports(ctx); err != nil {
		module.Close(ctx)
		return nil, err
	}
	return p, nil
}

func (p *Plugin) checkExports(ctx context.Context) error {
	if _, ok := p.module.Function(ExportRender); !ok {
		return fmt.Errorf("%w: %s", wasmhost.ErrUnknownExport, ExportRender)
	}

	switch {
	case p.module.Signature(ExportRender, renderFloatZoom, nil):
	case p.module.Signature(ExportRender, renderIntZoom, nil):
		p.intZoom = true
	default:
		return fmt.Errorf("%w: %s", ErrBadSignature, ExportRender)
	}

	if _, ok := p.module.Function(ExportABIVersion); !ok {
		return nil
	}
	if !p.module.Signature(ExportABIVersion, nil, []api.ValueType{api.ValueTypeI32}) {
		return fmt.Errorf("%w: %s", ErrBadSignature, ExportABIVersion)
	}
	results, err := p.module.Call(ctx, ExportABIVersion)
	if err != nil {
		return err
	}
	if version := api.DecodeI32(results[0]); version != ABIVersion {
		return fmt.Errorf("%w: kernel wants %d, host provides %d", ErrABIVersion, version, ABIVersion)
	}
	return nil
}

// Render runs the kernel's render export against t.
//
// The kernel must call paint exactly once. t.Paint is invoked only after the
// export has returned without fault; any fault returns ErrModuleFault wrapping
// the cause and leaves t.Image partially drawn.
func (p *Plugin) Render(ctx context.Context, t Target, vp render.Viewport) error {
	if p == nil || p.module == nil {
		return ErrNotLoaded
	}
	if t.Image == nil || t.Theme == nil {
		return ErrMissingTarget
	}

	p.binding.begin(&t)
	defer p.binding.end()

	zoom := api.EncodeF64(vp.Zoom)
	if p.intZoom {
		zoom = api.EncodeI32(truncZoom(vp.Zoom))
	}

	_, err := p.module.Call(ctx, ExportRender, api.EncodeF64(vp.Center.X()), api.EncodeF64(vp.Center.Y()), zoom)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModuleFault, err)
	}
	if !p.binding.painted {
		return ErrNoPaint
	}

	logging.Logger().Debug("kernel painted", "module", p.module.Name(), "width", t.Image.Width(), "height", t.Image.Height())
	if t.Paint != nil {
		t.Paint(t.Image)
	}
	return nil
}

func truncZoom(zoom float64) int32 {
	switch {
	case math.IsNaN(zoom):
		return 0
	case zoom >= math.MaxInt32:
		return math.MaxInt32
	case zoom <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(zoom)
	}
}

// Closed reports whether the module is gone, either closed or stopped by a call timeout.
func (p *Plugin) Closed() bool {
	return p == nil || p.module == nil || p.module.Closed()
}

func (p *Plugin) Close(ctx context.Context) error {
	if p == nil || p.module == nil {
		return nil
	}
	err := p.module.Close(ctx)
	p.module = nil
	return err
}
