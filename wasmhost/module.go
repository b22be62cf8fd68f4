package wasmhost

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Module is an instantiated module.
//
// A Module is not safe for concurrent use. Calls may nest: a host function
// running inside one call may call exports of another Module.
type Module struct {
	name    string
	runtime wazero.Runtime
	mod     api.Module
	exports map[string]api.FunctionDefinition
	funcs   map[string]api.Function
	timeout time.Duration
	closed  bool
}

func (m *Module) Name() string { return m.name }

// Function returns the definition of an exported function.
func (m *Module) Function(name string) (api.FunctionDefinition, bool) {
	def, ok := m.exports[name]
	return def, ok
}

// Signature reports whether export name exists with exactly the given parameter and result types.
func (m *Module) Signature(name string, params, results []api.ValueType) bool {
	def, ok := m.exports[name]
	if !ok {
		return false
	}
	return slices.Equal(def.ParamTypes(), params) && slices.Equal(def.ResultTypes(), results)
}

// Closed reports whether the module can no longer be called. A call that
// runs past its timeout closes the module for good.
func (m *Module) Closed() bool {
	return m == nil || m.closed || m.mod.IsClosed()
}

// Call invokes an export. Traps, host function panics and timeouts come back as ErrTrap.
// A timed out call also wraps ErrClosed, and later calls fail with ErrClosed.
func (m *Module) Call(ctx context.Context, export string, args ...uint64) (results []uint64, err error) {
	if m.Closed() {
		return nil, ErrClosed
	}

	fn, ok := m.funcs[export]
	if !ok {
		if _, exported := m.exports[export]; !exported {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExport, export)
		}
		fn = m.mod.ExportedFunction(export)
		if fn == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExport, export)
		}
		m.funcs[export] = fn
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	defer func() {
		if v := recover(); v != nil {
			results = nil
			err = fmt.Errorf("%w: %s: %v", ErrTrap, export, v)
		}
	}()

	results, err = fn.Call(ctx, args...)
	if err != nil {
		if m.mod.IsClosed() {
			return nil, fmt.Errorf("%w: %s: %w: %w", ErrTrap, export, ErrClosed, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTrap, export, err)
	}
	return results, nil
}

// Close tears down the module and its runtime.
func (m *Module) Close(ctx context.Context) error {
	if m == nil || m.closed {
		return nil
	}
	m.closed = true
	return m.runtime.Close(ctx)
}
