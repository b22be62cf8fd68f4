package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		err     error
		heading string
		body    []string
	}{
		{
			err:     &protocol.Error{Ref: "render_wasm", Code: protocol.CodeMissingResource, Detail: "required resource not installed: wasm"},
			heading: "Kernel render failed",
			body:    []string{"wasm (missing_resource)", "Load the missing resources"},
		},
		{
			err:     &protocol.Error{Ref: "theme", Code: protocol.CodeImportMismatch, Detail: "global env.scale"},
			heading: "Theme failed to load",
			body:    []string{"global env.scale (import_mismatch)", "imports this host does not provide"},
		},
		{
			err:     fmt.Errorf("listen: %w", &protocol.Error{Ref: "bogus", Code: protocol.CodeBadMessage, Detail: "unknown"}),
			heading: "Worker error",
			body:    []string{"unknown (bad_message)"},
		},
		{
			err:     fmt.Errorf("%w: no encoder for \".gif\" files", ErrUnknownFormat),
			heading: "Save failed",
			body:    []string{".gif", ".png or .bmp"},
		},
		{
			err:     fmt.Errorf("worker: %w", context.DeadlineExceeded),
			heading: "Timed out",
			body:    []string{"deadline exceeded"},
		},
		{
			err:     errors.New("disk full"),
			heading: "Error",
			body:    []string{"disk full"},
		},
	}

	for _, tt := range tests {
		heading, body := Describe(tt.err)
		assert.Equal(t, tt.heading, heading, tt.err)
		for _, want := range tt.body {
			assert.Contains(t, body, want, tt.err)
		}
	}

	heading, body := Describe(nil)
	assert.Empty(t, heading)
	assert.Empty(t, body)
}

func TestSaveTitle(t *testing.T) {
	assert.Equal(t, "Saving out.png", SaveTitle("/tmp/renders/out.png"))
	assert.Equal(t, "Saving fractal.bmp", SaveTitle("fractal.bmp"))
}
