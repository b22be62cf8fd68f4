package controller

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stewi1014/wasmfractal/pixels"
	"golang.org/x/image/bmp"
)

// ErrUnknownFormat is returned for file names with no matching encoder.
var ErrUnknownFormat = errors.New("unknown image format")

// Encoder writes an image in one file format.
type Encoder func(w io.Writer, img image.Image) error

var encoders = map[string]Encoder{
	".png": png.Encode,
	".bmp": bmp.Encode,
}

// EncoderFor picks the encoder for a file name's extension.
func EncoderFor(name string) (Encoder, error) {
	ext := strings.ToLower(filepath.Ext(name))
	enc, ok := encoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %q files", ErrUnknownFormat, ext)
	}
	return enc, nil
}

// SaveImage encodes img into the file name. The file is removed if encoding fails.
// Wrap img with WrapWithProgress first to follow the encoding.
func SaveImage(name string, img image.Image) (err error) {
	enc, err := EncoderFor(name)
	if err != nil {
		return err
	}

	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(file.Name())
		}
	}()

	if err := enc(file, encodable(img)); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return nil
}

// encodable hands pixel buffers to the encoders as *image.RGBA, which they
// read directly instead of going through At.
func encodable(img image.Image) image.Image {
	if buf, ok := img.(*pixels.Buffer); ok {
		return buf.RGBA()
	}
	return img
}

// SaveTitle is the progress text shown while name is written.
func SaveTitle(name string) string {
	return "Saving " + filepath.Base(name)
}
