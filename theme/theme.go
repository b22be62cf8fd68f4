// Package theme provides the color themes renderers consult for every pixel.
package theme

import (
	"context"
	"errors"
)

var ErrThemeNotLoaded = errors.New("theme not loaded")

// Theme maps an escape step count at a point of the complex plane to a
// packed 0x00BBGGRR color. Themes are assumed to be pure.
type Theme interface {
	MaxSteps(ctx context.Context) (uint32, error)
	ColorPixel(ctx context.Context, steps uint32, re, im float64) (uint32, error)
}

// RGB packs a color the way Theme.ColorPixel returns it.
func RGB(red, green, blue uint8) uint32 {
	return uint32(red) | uint32(green)<<8 | uint32(blue)<<16
}
