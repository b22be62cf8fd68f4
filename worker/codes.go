package worker

import (
	"errors"

	"github.com/stewi1014/wasmfractal/kernel"
	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stewi1014/wasmfractal/theme"
	"github.com/stewi1014/wasmfractal/wasmhost"
)

// Code maps an error to the protocol.Error code reported for it.
// More specific causes win: a kernel drawing out of bounds is out_of_bounds, not module_fault.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return protocol.CodeBusy
	case errors.Is(err, ErrMissingResource):
		return protocol.CodeMissingResource
	case errors.Is(err, pixels.ErrOutOfBounds):
		return protocol.CodeOutOfBounds
	case errors.Is(err, theme.ErrThemeNotLoaded):
		return protocol.CodeThemeNotLoaded
	case errors.Is(err, kernel.ErrNoPaint):
		return protocol.CodeNoPaint
	case errors.Is(err, kernel.ErrModuleFault), errors.Is(err, wasmhost.ErrTrap):
		return protocol.CodeModuleFault
	case errors.Is(err, wasmhost.ErrInvalidModule):
		return protocol.CodeInvalidModule
	case errors.Is(err, wasmhost.ErrImportMismatch),
		errors.Is(err, theme.ErrBadSignature),
		errors.Is(err, kernel.ErrBadSignature),
		errors.Is(err, kernel.ErrABIVersion):
		return protocol.CodeImportMismatch
	case errors.Is(err, wasmhost.ErrUnknownExport):
		return protocol.CodeUnknownExport
	case errors.Is(err, pixels.ErrBadDescriptor),
		errors.Is(err, theme.ErrNoSuchTheme),
		errors.Is(err, ErrUnknownMessage):
		return protocol.CodeBadMessage
	default:
		return protocol.CodeInternal
	}
}
