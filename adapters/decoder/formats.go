package decoder

import (
	"context"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/doc-intake/core"
)

// JPEG decodes JPEG images using the standard library.
type JPEG struct{}

// NewJPEG returns an initialised JPEG decoder.
func NewJPEG() *JPEG { return &JPEG{} }

func (JPEG) CanDecode(format core.Format) bool { return format == core.FormatJPEG }

func (JPEG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "jpeg.decode", core.FormatJPEG, jpeg.Decode, r)
}

// PNG decodes PNG images using the standard library.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (PNG) CanDecode(format core.Format) bool { return format == core.FormatPNG }

func (PNG) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "png.decode", core.FormatPNG, png.Decode, r)
}

// WebP decodes WebP images using golang.org/x/image/webp.
// NOTE: golang.org/x/image/webp does not decode animated WebP.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (WebP) CanDecode(format core.Format) bool { return format == core.FormatWebP }

func (WebP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "webp.decode", core.FormatWebP, webp.Decode, r)
}

// GIF decodes the first frame of a GIF.
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (GIF) CanDecode(format core.Format) bool { return format == core.FormatGIF }

func (GIF) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "gif.decode", core.FormatGIF, gif.Decode, r)
}

// BMP decodes Windows bitmaps using golang.org/x/image/bmp.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (BMP) CanDecode(format core.Format) bool { return format == core.FormatBMP }

func (BMP) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "bmp.decode", core.FormatBMP, bmp.Decode, r)
}

// TIFF decodes scanner output using golang.org/x/image/tiff.
type TIFF struct{}

func NewTIFF() *TIFF { return &TIFF{} }

func (TIFF) CanDecode(format core.Format) bool { return format == core.FormatTIFF }

func (TIFF) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	return decode(ctx, "tiff.decode", core.FormatTIFF, tiff.Decode, r)
}
