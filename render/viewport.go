package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Viewport is the region of the complex plane a render covers.
type Viewport struct {
	// Center is the point of the plane at the middle of the image, as (re, im).
	Center mgl64.Vec2
	// Zoom is the base 2 log of pixels per unit.
	Zoom float64
}

func NewViewport(re, im, zoom float64) Viewport {
	return Viewport{Center: mgl64.Vec2{re, im}, Zoom: zoom}
}

// PixelDistance is the width of one pixel in plane units.
func (v Viewport) PixelDistance() float64 {
	// Whole zoom levels give an exact power of two.
	if z := math.Trunc(v.Zoom); z == v.Zoom && math.Abs(z) < 1000 {
		return math.Ldexp(1, -int(z))
	}
	return 1 / math.Exp2(v.Zoom)
}

// Point maps pixel (px, py) of a width x height image onto the plane.
func (v Viewport) Point(px, py, width, height uint32) mgl64.Vec2 {
	dist := v.PixelDistance()
	return mgl64.Vec2{
		planeCoord(v.Center.X(), px, width, dist),
		planeCoord(v.Center.Y(), py, height, dist),
	}
}

func planeCoord(center float64, pixel, size uint32, dist float64) float64 {
	offset := float64(pixel) - float64(size)/2
	return center + float64(offset*dist)
}
