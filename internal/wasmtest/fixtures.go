package wasmtest

// GrayTheme exports max_steps() -> i32 returning maxSteps and
// color_pixel(steps, re, im) -> i32 returning steps | steps<<8 | steps<<16.
func GrayTheme(maxSteps int32) []byte {
	var m Module
	m.Memory()
	m.Export("max_steps", m.Func(nil, []byte{I32}, nil, Asm{}.I32(maxSteps)))
	m.Export("color_pixel", m.Func([]byte{I32, F64, F64}, []byte{I32}, nil, Asm{}.
		Get(0).
		Get(0).I32(8).I32Shl().I32Or().
		Get(0).I32(16).I32Shl().I32Or(),
	))
	return m.Bytes()
}

// GrayTheme64 is GrayTheme using 64-bit step counts.
func GrayTheme64(maxSteps int64) []byte {
	var m Module
	m.Export("max_steps", m.Func(nil, []byte{I64}, nil, Asm{}.I64(maxSteps)))
	m.Export("color_pixel", m.Func([]byte{I64, F64, F64}, []byte{I32}, nil, Asm{}.
		Get(0).I32Wrap().
		Get(0).I32Wrap().I32(8).I32Shl().I32Or().
		Get(0).I32Wrap().I32(16).I32Shl().I32Or(),
	))
	return m.Bytes()
}

// TrappingTheme exports a valid max_steps and a color_pixel that always traps.
func TrappingTheme() []byte {
	var m Module
	m.Export("max_steps", m.Func(nil, []byte{I32}, nil, Asm{}.I32(4)))
	m.Export("color_pixel", m.Func([]byte{I32, F64, F64}, []byte{I32}, nil, Asm{}.Unreachable()))
	return m.Bytes()
}

// Kernel import indices, in the order kernelImports declares them.
const (
	importCanvasWidth uint32 = iota
	importCanvasHeight
	importDrawPixel
	importColorPixel
	importMaxSteps
	importProgress
	importPaint
)

func kernelImports(m *Module) {
	m.Import("env", "canvas_width", nil, []byte{I32})
	m.Import("env", "canvas_height", nil, []byte{I32})
	m.Import("env", "draw_pixel", []byte{I32, I32, I32}, nil)
	m.Import("env", "color_pixel", []byte{I32, F64, F64}, []byte{I32})
	m.Import("env", "max_steps", nil, []byte{I32})
	m.Import("env", "progress", []byte{F64}, nil)
	m.Import("env", "paint", nil, nil)
}

var renderParams = []byte{F64, F64, F64}

// EscapeKernel is a complete render kernel computing the same escape-time
// image as the built-in renderer, for whole-number zoom levels.
func EscapeKernel() []byte {
	var m Module
	m.Memory()
	kernelImports(&m)

	// params: 0 center_re, 1 center_im, 2 zoom
	const (
		width uint32 = 3 + iota
		height
		px
		py
		steps
		maxSteps
		dist
		cRe
		cIm
		zRe
		zIm
		tmp
	)
	locals := []byte{I32, I32, I32, I32, I32, I32, F64, F64, F64, F64, F64, F64}

	a := Asm{}.
		Call(importCanvasWidth).Set(width).
		Call(importCanvasHeight).Set(height).
		Call(importMaxSteps).Set(maxSteps).
		// dist = 0.5^zoom
		F64(1).Set(dist).
		Get(2).I32TruncF64U().Set(steps).
		Block().Loop().
		Get(steps).I32Eqz().BrIf(1).
		Get(dist).F64(0.5).F64Mul().Set(dist).
		Get(steps).I32(1).I32Sub().Set(steps).
		Br(0).
		End().End().
		I32(0).Set(py).
		Block().Loop().
		Get(py).Get(height).I32GeU().BrIf(1).
		// c_im = center_im + (py - height/2) * dist
		Get(1).
		Get(py).F64FromU32().Get(height).F64FromU32().F64(0.5).F64Mul().F64Sub().
		Get(dist).F64Mul().
		F64Add().Set(cIm).
		I32(0).Set(px).
		Block().Loop().
		Get(px).Get(width).I32GeU().BrIf(1).
		Get(0).
		Get(px).F64FromU32().Get(width).F64FromU32().F64(0.5).F64Mul().F64Sub().
		Get(dist).F64Mul().
		F64Add().Set(cRe).
		F64(0).Set(zRe).
		F64(0).Set(zIm).
		I32(0).Set(steps).
		Block().Loop().
		Get(zRe).Get(zRe).F64Mul().
		Get(zIm).Get(zIm).F64Mul().
		F64Add().F64(4).F64Lt().I32Eqz().BrIf(1).
		Get(steps).Get(maxSteps).I32GeU().BrIf(1).
		Get(zRe).Get(zRe).F64Mul().
		Get(zIm).Get(zIm).F64Mul().
		F64Sub().Get(cRe).F64Add().Set(tmp).
		F64(2).Get(zRe).F64Mul().Get(zIm).F64Mul().Get(cIm).F64Add().Set(zIm).
		Get(tmp).Set(zRe).
		Get(steps).I32(1).I32Add().Set(steps).
		Br(0).
		End().End().
		Get(px).Get(py).
		Get(steps).Get(cRe).Get(cIm).Call(importColorPixel).
		Call(importDrawPixel).
		Get(px).I32(1).I32Add().Set(px).
		Br(0).
		End().End().
		Get(py).I32(1).I32Add().Set(py).
		Get(py).F64FromU32().Get(height).F64FromU32().F64Div().Call(importProgress).
		Br(0).
		End().End().
		Call(importPaint)

	m.Export("render", m.Func(renderParams, nil, locals, a))
	return m.Bytes()
}

// PixelKernel draws one pixel at (x, y) colored by color_pixel(max_steps(), center_re, center_im),
// reports progress 1 and paints.
func PixelKernel(x, y int32) []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		I32(x).I32(y).
		Call(importMaxSteps).Get(0).Get(1).Call(importColorPixel).
		Call(importDrawPixel).
		F64(1).Call(importProgress).
		Call(importPaint),
	))
	return m.Bytes()
}

// TrapKernel reports some progress and traps without painting.
func TrapKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		I32(0).I32(0).I32(0x00ffffff).Call(importDrawPixel).
		F64(0.5).Call(importProgress).
		Unreachable(),
	))
	return m.Bytes()
}

// SilentKernel returns from render without painting.
func SilentKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		F64(1).Call(importProgress),
	))
	return m.Bytes()
}

// DoublePaintKernel calls paint twice.
func DoublePaintKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		Call(importPaint).
		Call(importPaint),
	))
	return m.Bytes()
}

// IntZoomKernel uses the render(f64, f64, i32) form and paints pixel (0, 0)
// with the zoom value as its color.
func IntZoomKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func([]byte{F64, F64, I32}, nil, nil, Asm{}.
		I32(0).I32(0).Get(2).Call(importDrawPixel).
		Call(importPaint),
	))
	return m.Bytes()
}

// VersionedKernel paints immediately and exports abi_version() returning version.
func VersionedKernel(version int32) []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		Call(importPaint),
	))
	m.Export("abi_version", m.Func(nil, []byte{I32}, nil, Asm{}.I32(version)))
	return m.Bytes()
}

// ForeignImportKernel imports a host function outside the kernel ABI.
func ForeignImportKernel() []byte {
	var m Module
	m.Import("env", "open_file", []byte{I32}, []byte{I32})
	m.Export("render", m.Func(renderParams, nil, nil, nil))
	return m.Bytes()
}

// GlobalImportKernel imports a global from env, which the host never provides.
func GlobalImportKernel() []byte {
	var m Module
	m.ImportGlobal("env", "scale", I32)
	m.Export("render", m.Func(renderParams, nil, nil, nil))
	return m.Bytes()
}

// TableImportKernel imports a function table from env.
func TableImportKernel() []byte {
	var m Module
	m.ImportTable("env", "callbacks")
	m.Export("render", m.Func(renderParams, nil, nil, nil))
	return m.Bytes()
}

// MemoryImportKernel imports its linear memory from env.
func MemoryImportKernel() []byte {
	var m Module
	m.ImportMemory("env", "memory")
	m.Export("render", m.Func(renderParams, nil, nil, nil))
	return m.Bytes()
}

// SpinKernel loops forever in render.
func SpinKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		Loop().Br(0).End(),
	))
	return m.Bytes()
}

// MismatchedKernel imports draw_pixel with the wrong signature.
func MismatchedKernel() []byte {
	var m Module
	m.Import("env", "draw_pixel", []byte{I64, I64, I64}, nil)
	m.Export("render", m.Func(renderParams, nil, nil, nil))
	return m.Bytes()
}

// NoRenderKernel imports nothing and exports no render function.
func NoRenderKernel() []byte {
	var m Module
	m.Export("draw", m.Func(nil, nil, nil, nil))
	return m.Bytes()
}

// Adder exports add(i64, i64) -> i64.
func Adder() []byte {
	var m Module
	m.Export("add", m.Func([]byte{I64, I64}, []byte{I64}, nil, Asm{}.
		Get(1).Get(0).Op(0x7c),
	))
	return m.Bytes()
}

// InitKernel calls canvas_width from its _initialize function, before any render.
func InitKernel() []byte {
	var m Module
	kernelImports(&m)
	m.Export("_initialize", m.Func(nil, nil, nil, Asm{}.
		Call(importCanvasWidth).Drop(),
	))
	m.Export("render", m.Func(renderParams, nil, nil, Asm{}.
		Call(importPaint),
	))
	return m.Bytes()
}
