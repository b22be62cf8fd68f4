package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewi1014/wasmfractal/protocol"
)

var refHeadings = map[string]string{
	(&protocol.Image{}).Type():        "Image rejected",
	(&protocol.Theme{}).Type():        "Theme failed to load",
	(&protocol.Kernel{}).Type():       "Kernel failed to load",
	(&protocol.RenderNative{}).Type(): "Render failed",
	(&protocol.RenderWasm{}).Type():   "Kernel render failed",
}

var codeHints = map[string]string{
	protocol.CodeMissingResource: "Load the missing resources and render again.",
	protocol.CodeBusy:            "Wait for the current render to finish.",
	protocol.CodeImportMismatch:  "The module expects imports this host does not provide.",
	protocol.CodeModuleFault:     "If the module timed out it has been unloaded; load it again.",
	protocol.CodeNoPaint:         "The kernel returned without calling paint.",
}

// Describe turns an error from the worker or from saving into a dialog
// heading and body.
func Describe(err error) (heading, body string) {
	var perr *protocol.Error
	switch {
	case err == nil:
		return "", ""
	case errors.As(err, &perr):
		heading, ok := refHeadings[perr.Ref]
		if !ok {
			heading = "Worker error"
		}
		body = fmt.Sprintf("%s (%s)", perr.Detail, perr.Code)
		if hint, ok := codeHints[perr.Code]; ok {
			body += "\n" + hint
		}
		return heading, body
	case errors.Is(err, ErrUnknownFormat):
		return "Save failed", err.Error() + "\nUse a .png or .bmp file name."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out", err.Error()
	default:
		return "Error", err.Error()
	}
}
