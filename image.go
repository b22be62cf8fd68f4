package main

import (
	"fmt"

	"github.com/gotk3/gotk3/gdk"
	"github.com/stewi1014/wasmfractal/pixels"
)

// NewPixbuf copies img into a new RGBA pixbuf. Pixbuf rows may be padded,
// so the copy goes row by row.
func NewPixbuf(img *pixels.Buffer) (*gdk.Pixbuf, error) {
	width, height := int(img.Width()), int(img.Height())
	pixbuf, err := gdk.PixbufNew(gdk.COLORSPACE_RGB, true, 8, width, height)
	if err != nil {
		return nil, fmt.Errorf("gdk.PixbufNew: %w", err)
	}

	dst := pixbuf.GetPixels()
	stride := pixbuf.GetRowstride()
	src := img.Pix()
	row := width * 4
	for y := 0; y < height; y++ {
		copy(dst[y*stride:y*stride+row], src[y*row:(y+1)*row])
	}
	return pixbuf, nil
}
