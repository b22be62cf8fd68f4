// Package pixels holds the RGBA pixel store that renderers draw into.
package pixels

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

var (
	ErrOutOfBounds   = errors.New("pixel out of bounds")
	ErrBadDescriptor = errors.New("pixel data does not match dimensions")
)

// Buffer is a row-major RGBA store, 4 bytes per pixel.
//
// A Buffer is not safe for concurrent writes; only one renderer draws into it at a time.
type Buffer struct {
	width  uint32
	height uint32
	pix    []byte
}

var _ image.Image = (*Buffer)(nil)

func New(width, height uint32) *Buffer {
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]byte, int(width)*int(height)*4),
	}
}

// FromRGBA wraps existing pixel data without copying it.
func FromRGBA(width, height uint32, pix []byte) (*Buffer, error) {
	if len(pix) != int(width)*int(height)*4 {
		return nil, fmt.Errorf("%w: %vx%v needs %v bytes, got %v", ErrBadDescriptor, width, height, int(width)*int(height)*4, len(pix))
	}
	return &Buffer{width: width, height: height, pix: pix}, nil
}

func (b *Buffer) Width() uint32  { return b.width }
func (b *Buffer) Height() uint32 { return b.height }

// Pix returns the underlying pixel slice.
func (b *Buffer) Pix() []byte { return b.pix }

// Draw writes color, packed as 0x00BBGGRR, at (x, y) with full alpha.
func (b *Buffer) Draw(x, y, color uint32) error {
	if x >= b.width || y >= b.height {
		return fmt.Errorf("%w: (%v, %v) in %vx%v", ErrOutOfBounds, x, y, b.width, b.height)
	}

	i := (int(b.width)*int(y) + int(x)) * 4
	b.pix[i+0] = byte(color)
	b.pix[i+1] = byte(color >> 8)
	b.pix[i+2] = byte(color >> 16)
	b.pix[i+3] = 0xff
	return nil
}

func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(b.width), int(b.height))
}

func (b *Buffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= int(b.width) || y >= int(b.height) {
		return color.RGBA{}
	}
	i := (int(b.width)*y + x) * 4
	return color.RGBA{
		R: b.pix[i+0],
		G: b.pix[i+1],
		B: b.pix[i+2],
		A: b.pix[i+3],
	}
}

func (b *Buffer) ColorModel() color.Model {
	return color.RGBAModel
}

func (b *Buffer) Opaque() bool {
	for i := 3; i < len(b.pix); i += 4 {
		if b.pix[i] != 0xff {
			return false
		}
	}
	return true
}

// RGBA returns an *image.RGBA sharing the buffer's memory.
func (b *Buffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.pix,
		Stride: int(b.width) * 4,
		Rect:   b.Bounds(),
	}
}

// MarshalBinary encodes the buffer as width and height (little-endian u32) followed by the pixels.
func (b *Buffer) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+len(b.pix))
	binary.LittleEndian.PutUint32(buf[0:4], b.width)
	binary.LittleEndian.PutUint32(buf[4:8], b.height)
	copy(buf[8:], b.pix)
	return buf, nil
}

func (b *Buffer) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: short header", ErrBadDescriptor)
	}
	width := binary.LittleEndian.Uint32(data[0:4])
	height := binary.LittleEndian.Uint32(data[4:8])
	pix := make([]byte, len(data)-8)
	copy(pix, data[8:])

	decoded, err := FromRGBA(width, height, pix)
	if err != nil {
		return err
	}
	*b = *decoded
	return nil
}
