package controller

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testImage(t *testing.T) *pixels.Buffer {
	img := pixels.New(3, 2)
	for y := uint32(0); y < 2; y++ {
		for x := uint32(0); x < 3; x++ {
			require.NoError(t, img.Draw(x, y, x*40|y*80<<8|0x7f<<16))
		}
	}
	return img
}

func assertSameImage(t *testing.T, want, got image.Image) {
	t.Helper()
	require.Equal(t, want.Bounds(), got.Bounds())
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			wr, wg, wb, wa := want.At(x, y).RGBA()
			gr, gg, gb, ga := got.At(x, y).RGBA()
			assert.Equal(t, [4]uint32{wr, wg, wb, wa}, [4]uint32{gr, gg, gb, ga}, "pixel (%d, %d)", x, y)
		}
	}
}

func TestSavePNG(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.png")
	img := testImage(t)
	require.NoError(t, SaveImage(name, img))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assertSameImage(t, img, decoded)
}

func TestSaveBMP(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.BMP")
	img := testImage(t)
	require.NoError(t, SaveImage(name, img))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := bmp.Decode(f)
	require.NoError(t, err)
	assertSameImage(t, img, decoded)
}

func TestSaveUnknownFormat(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.gif")
	assert.ErrorIs(t, SaveImage(name, testImage(t)), ErrUnknownFormat)
	assert.NoFileExists(t, name)
}

func TestSaveProgress(t *testing.T) {
	var img image.Image = testImage(t)
	progress := WrapWithProgress(&img)
	assert.Equal(t, 0.0, progress())

	require.NoError(t, SaveImage(filepath.Join(t.TempDir(), "out.png"), img))
	assert.Equal(t, 1.0, progress())
	assert.True(t, img.(*ProgressImage).Opaque())
}

func TestEncodableBuffer(t *testing.T) {
	buf := testImage(t)
	rgba, ok := encodable(buf).(*image.RGBA)
	require.True(t, ok)
	assert.Same(t, &buf.Pix()[0], &rgba.Pix[0])

	var wrapped image.Image = buf
	WrapWithProgress(&wrapped)
	assert.Same(t, wrapped, encodable(wrapped), "wrapped images keep counting reads")
}
