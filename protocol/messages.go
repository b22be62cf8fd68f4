// Package protocol defines the messages exchanged between a controller and a
// render worker, and the transports that carry them.
package protocol

import (
	"encoding/gob"
	"fmt"

	"github.com/stewi1014/wasmfractal/pixels"
)

// Message is anything that can cross a Conn. Type returns the wire tag.
type Message interface {
	Type() string
}

func init() {
	gob.Register(&Image{})
	gob.Register(&Theme{})
	gob.Register(&Kernel{})
	gob.Register(&RenderNative{})
	gob.Register(&RenderWasm{})
	gob.Register(&Progress{})
	gob.Register(&Paint{})
	gob.Register(&Loaded{})
	gob.Register(&Error{})
}

// Image installs a pixel buffer. Pix is handed over; the sender must not touch it afterwards.
type Image struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

func (*Image) Type() string { return "image" }

// Theme installs a color theme, either a wasm module or a built-in named by Builtin.
type Theme struct {
	Wasm    []byte
	Builtin string
}

func (*Theme) Type() string { return "theme" }

// Kernel installs a render kernel module.
type Kernel struct {
	Wasm []byte
}

func (*Kernel) Type() string { return "wasm" }

// RenderNative renders with the built-in algorithm centered on X + Yi.
type RenderNative struct {
	X, Y, Zoom float64
}

func (*RenderNative) Type() string { return "render_native" }

// RenderWasm renders with the installed kernel centered on X + Yi.
type RenderWasm struct {
	X, Y, Zoom float64
}

func (*RenderWasm) Type() string { return "render_wasm" }

type Progress struct {
	Progress float64
}

func (*Progress) Type() string { return "progress" }

// Paint carries the finished image back to the controller.
type Paint struct {
	Image *pixels.Buffer
}

func (*Paint) Type() string { return "paint" }

// Loaded acknowledges an install; Resource is the type of the install message.
type Loaded struct {
	Resource string
}

func (*Loaded) Type() string { return "loaded" }

// Error codes.
const (
	CodeInvalidModule   = "invalid_module"
	CodeImportMismatch  = "import_mismatch"
	CodeUnknownExport   = "unknown_export"
	CodeModuleFault     = "module_fault"
	CodeThemeNotLoaded  = "theme_not_loaded"
	CodeMissingResource = "missing_resource"
	CodeOutOfBounds     = "out_of_bounds"
	CodeBusy            = "busy"
	CodeNoPaint         = "no_paint"
	CodeBadMessage      = "bad_message"
	CodeInternal        = "internal"
)

// Error reports that the message of type Ref failed.
type Error struct {
	Ref    string
	Code   string
	Detail string
}

func (*Error) Type() string { return "error" }

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Ref, e.Code, e.Detail)
}
