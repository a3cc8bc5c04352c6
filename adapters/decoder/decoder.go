// Package decoder provides format-specific image decoders built on the
// standard library and golang.org/x/image.
package decoder

import (
	"context"
	"image"
	"io"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

// decodeFunc matches image/jpeg.Decode, image/png.Decode and friends.
type decodeFunc func(io.Reader) (image.Image, error)

// decode runs fn over r and fills in ImageData metadata for format.
func decode(ctx context.Context, op string, format core.Format, fn decodeFunc, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	img, err := fn(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrInvalidDimensions)
	}

	return &core.ImageData{
		Image:  img,
		Format: format,
		Meta: core.Metadata{
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			Format:     format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

// colorSpace returns the colour space of an image.Image.
func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	case *image.CMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return true
	}
	return false
}

// RegisterAll registers every decoder in this package on reg.
func RegisterAll(reg core.Registry) {
	reg.RegisterDecoder(core.FormatJPEG, NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, NewPNG())
	reg.RegisterDecoder(core.FormatWebP, NewWebP())
	reg.RegisterDecoder(core.FormatGIF, NewGIF())
	reg.RegisterDecoder(core.FormatBMP, NewBMP())
	reg.RegisterDecoder(core.FormatTIFF, NewTIFF())
}
