// Package render is the built-in escape-time renderer.
package render

import (
	"context"
	"fmt"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/theme"
)

// EscapeSteps iterates z = z² + c from zero until |z|² reaches 4 or maxSteps is hit.
//
// Every product is explicitly rounded so no fused multiply-add changes the
// result; a wasm kernel doing the same arithmetic gets identical step counts.
func EscapeSteps(re, im float64, maxSteps uint32) uint32 {
	var zRe, zIm float64
	steps := uint32(0)
	for float64(zRe*zRe)+float64(zIm*zIm) < 4.0 && steps < maxSteps {
		zRe, zIm = float64(zRe*zRe)-float64(zIm*zIm)+re, float64(2*zRe*zIm)+im
		steps++
	}
	return steps
}

// Native draws every pixel of img, calling progress with (row+1)/height after each row.
// The caller signals completion; Native returns nil once the last row is drawn.
func Native(ctx context.Context, img *pixels.Buffer, th theme.Theme, vp Viewport, progress func(float64)) error {
	maxSteps, err := th.MaxSteps(ctx)
	if err != nil {
		return fmt.Errorf("max_steps: %w", err)
	}

	width, height := img.Width(), img.Height()
	for py := uint32(0); py < height; py++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for px := uint32(0); px < width; px++ {
			c := vp.Point(px, py, width, height)
			steps := EscapeSteps(c.X(), c.Y(), maxSteps)

			color, err := th.ColorPixel(ctx, steps, c.X(), c.Y())
			if err != nil {
				return fmt.Errorf("color_pixel(%v, %v, %v): %w", steps, c.X(), c.Y(), err)
			}
			if err := img.Draw(px, py, color); err != nil {
				return err
			}
		}

		if progress != nil {
			progress(float64(py+1) / float64(height))
		}
	}
	return nil
}
