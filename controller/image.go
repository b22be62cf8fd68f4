package controller

import (
	"image"
	"image/color"
	"sync/atomic"
)

// WrapWithProgress replaces *img with a wrapper counting pixel reads and
// returns a func reporting the fraction read so far.
func WrapWithProgress(img *image.Image) func() float64 {
	p := &ProgressImage{
		Image: *img,
	}

	*img = p
	return p.Progress
}

type ProgressImage struct {
	image.Image
	count atomic.Int64
}

func (i *ProgressImage) At(x, y int) color.Color {
	i.count.Add(1)
	return i.Image.At(x, y)
}

func (i *ProgressImage) Progress() float64 {
	end := i.Bounds().Dx() * i.Bounds().Dy()
	if end == 0 {
		return 1
	}
	return min(float64(i.count.Load())/float64(end), 1)
}

func (i *ProgressImage) Opaque() bool {
	if o, ok := i.Image.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}
