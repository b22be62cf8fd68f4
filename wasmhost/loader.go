// Package wasmhost instantiates untrusted WebAssembly modules against a table
// of host functions and calls their exports behind a fault boundary.
package wasmhost

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/stewi1014/wasmfractal/internal/logging"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	ErrInvalidModule  = errors.New("invalid module")
	ErrImportMismatch = errors.New("module import not provided by host")
	ErrUnknownExport  = errors.New("unknown export")
	ErrTrap           = errors.New("module trapped")
	ErrClosed         = errors.New("module closed")
)

// HostFunc is a named host function a module may import.
//
// Func must be a Go func accepted by wazero's HostFunctionBuilder.WithFunc:
// an optional leading context.Context, then numeric parameters and results.
type HostFunc struct {
	Name string
	Func any
}

// ImportTable is the complete set of host functions offered to a module.
type ImportTable struct {
	Module string
	Funcs  []HostFunc
}

type Config struct {
	// MemoryLimitPages caps each module's linear memory in 64KiB pages. Zero uses wazero's default.
	MemoryLimitPages uint32
	// CallTimeout bounds each exported call. Zero disables the limit.
	CallTimeout time.Duration
}

// Loader compiles and instantiates modules.
// Every module gets its own runtime; compiled code is shared through one cache.
type Loader struct {
	cfg   Config
	cache wazero.CompilationCache
	count atomic.Uint64
}

func NewLoader(cfg Config) *Loader {
	return &Loader{
		cfg:   cfg,
		cache: wazero.NewCompilationCache(),
	}
}

// Close releases the compilation cache. Modules already loaded stay usable.
func (l *Loader) Close(ctx context.Context) error {
	return l.cache.Close(ctx)
}

// Load instantiates wasm with the given imports. imports may be nil for modules that import nothing.
func (l *Loader) Load(ctx context.Context, name string, wasm []byte, imports *ImportTable) (*Module, error) {
	runtimeConfig := wazero.NewRuntimeConfig().
		WithCompilationCache(l.cache).
		WithCloseOnContextDone(true)
	if l.cfg.MemoryLimitPages > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(l.cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	m, err := l.load(ctx, runtime, name, wasm, imports)
	if err != nil {
		runtime.Close(ctx)
		return nil, err
	}
	return m, nil
}

func (l *Loader) load(ctx context.Context, runtime wazero.Runtime, name string, wasm []byte, imports *ImportTable) (*Module, error) {
	provided := map[string]api.FunctionDefinition{}
	if imports != nil && len(imports.Funcs) > 0 {
		builder := runtime.NewHostModuleBuilder(imports.Module)
		for _, f := range imports.Funcs {
			builder = builder.NewFunctionBuilder().WithFunc(f.Func).Export(f.Name)
		}

		host, err := builder.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("compiling host module %q: %w", imports.Module, err)
		}
		for exportName, def := range host.ExportedFunctions() {
			provided[imports.Module+"."+exportName] = def
		}
		if _, err := runtime.InstantiateModule(ctx, host, wazero.NewModuleConfig().WithName(imports.Module)); err != nil {
			return nil, fmt.Errorf("instantiating host module %q: %w", imports.Module, err)
		}
	}

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidModule, name, err)
	}

	if err := checkImports(compiled, wasm, provided); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	instanceName := fmt.Sprintf("%s-%d", name, l.count.Add(1))
	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(instanceName).
		WithStartFunctions("_initialize"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidModule, name, err)
	}

	logging.Logger().Debug("module loaded",
		"module", instanceName,
		"imports", len(compiled.ImportedFunctions()),
		"exports", len(compiled.ExportedFunctions()),
	)

	return &Module{
		name:    instanceName,
		runtime: runtime,
		mod:     mod,
		exports: compiled.ExportedFunctions(),
		funcs:   map[string]api.Function{},
		timeout: l.cfg.CallTimeout,
	}, nil
}

func checkImports(compiled wazero.CompiledModule, wasm []byte, provided map[string]api.FunctionDefinition) error {
	for _, def := range compiled.ImportedFunctions() {
		moduleName, importName, _ := def.Import()
		host, ok := provided[moduleName+"."+importName]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrImportMismatch, moduleName, importName)
		}
		if !slices.Equal(host.ParamTypes(), def.ParamTypes()) || !slices.Equal(host.ResultTypes(), def.ResultTypes()) {
			return fmt.Errorf("%w: %s.%s has signature %s, host provides %s",
				ErrImportMismatch, moduleName, importName, signature(def), signature(host))
		}
	}

	// The host only provides functions.
	imports, err := readImports(wasm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidModule, err)
	}
	for _, imp := range imports {
		if imp.kind != kindFunc {
			return fmt.Errorf("%w: %s", ErrImportMismatch, imp)
		}
	}
	return nil
}

func signature(def api.FunctionDefinition) string {
	s := "("
	for i, t := range def.ParamTypes() {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	s += ")"
	if results := def.ResultTypes(); len(results) > 0 {
		s += " -> "
		for i, t := range results {
			if i > 0 {
				s += ", "
			}
			s += api.ValueTypeName(t)
		}
	}
	return s
}
