package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // header parsers for image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.Image.  When
// MaxPixels is set the header is read first and larger images are rejected
// as a validation error before any pixel buffer is allocated.
type DecodeStep struct {
	Registry  core.Registry
	MaxPixels int64
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}
	dec, ok := s.Registry.DecoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}
	if err := s.checkPixels(img.Data); err != nil {
		return nil, err
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}

	// Preserve the raw data bytes alongside the decoded representation.
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	decoded.Quality = img.Quality
	return decoded, nil
}

func (s *DecodeStep) checkPixels(data []byte) error {
	if s.MaxPixels <= 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryDecode, s.Name(), err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > s.MaxPixels {
		return apperrors.New(apperrors.CategoryValidation, s.Name(),
			fmt.Errorf("%w: %dx%d is over %d pixels", apperrors.ErrTooManyPixels, cfg.Width, cfg.Height, s.MaxPixels))
	}
	return nil
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep scales the image to Width, deriving the height from the source
// aspect ratio.  Narrower sources are left alone unless AllowUpscale is set.
// Transparent areas are flattened onto white since the output is JPEG.
type ResizeStep struct {
	Width        int
	AllowUpscale bool
	// Resampler controls quality vs speed.  Defaults to draw.CatmullRom.
	Resampler xdraw.Interpolator
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	src := img.Image
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	srcB := src.Bounds()
	dstW, dstH := utils.FitWidth(srcB.Dx(), srcB.Dy(), s.Width, s.AllowUpscale)
	if dstW <= 0 || dstH <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if dstW == srcB.Dx() && dstH == srcB.Dy() {
		draw.Draw(dst, dst.Bounds(), src, srcB.Min, draw.Over)
	} else {
		sampler := s.Resampler
		if sampler == nil {
			sampler = xdraw.CatmullRom
		}
		sampler.Scale(dst, dst.Bounds(), src, srcB, xdraw.Over, nil)
	}

	out := *img
	out.Image = dst
	out.Meta.Width = dstW
	out.Meta.Height = dstH
	out.Meta.ColorSpace = core.ColorSpaceRGB
	out.Meta.HasAlpha = false
	return &out, nil
}

// ── Format conversion ─────────────────────────────────────────────────────────

// FormatStep sets the output format picked up by EncodeStep.
type FormatStep struct {
	Format core.Format
}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	out := *img
	out.Format = s.Format
	out.Meta.Format = s.Format
	return &out, nil
}

// ── Quality ───────────────────────────────────────────────────────────────────

// QualityStep records the desired encode quality for EncodeStep.
type QualityStep struct {
	Quality int
}

func (s *QualityStep) Name() string { return "quality" }

func (s *QualityStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	if s.Quality < 1 || s.Quality > 100 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("quality %d out of range 1-100", s.Quality))
	}
	out := *img
	out.Quality = s.Quality
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the decoded image into img.Format using the registry.
type EncodeStep struct {
	Registry    core.Registry
	BaseOptions core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	enc, ok := s.Registry.EncoderFor(img.Format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	opts := s.BaseOptions
	if img.Quality > 0 {
		opts.Quality = img.Quality
	}

	data, err := enc.Encode(ctx, img, opts)
	if err != nil {
		return nil, err
	}

	out := *img
	out.Data = data
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}
