//go:build vips

// Package vips decodes uploads with libvips.  It applies the EXIF
// orientation phone cameras record, which the Go decoders ignore, and hands
// the pixels on as an image.Image so the rest of the pipeline is unchanged.
package vips

import (
	"context"
	"io"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/utils"
)

// Config configures libvips.
type Config struct {
	MaxWorkers   int
	MaxCacheSize int
	ReportLeaks  bool
}

// Decoder is a core.Decoder backed by libvips.  Safe for concurrent use.
type Decoder struct{}

// NewDecoder initialises libvips.  Call Shutdown when the process exits.
func NewDecoder(cfg Config) *Decoder {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.LoggingSettings(nil, govips.LogLevelWarning)
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Decoder{}
}

// Shutdown releases all libvips resources.
func (d *Decoder) Shutdown() { govips.Shutdown() }

// Formats lists the formats Decoder should be registered for.
func (d *Decoder) Formats() []core.Format {
	return []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF, core.FormatTIFF}
}

func (d *Decoder) CanDecode(f core.Format) bool {
	for _, g := range d.Formats() {
		if f == g {
			return true
		}
	}
	return false
}

func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	const op = "vips.decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	buf, err := utils.DrainReader(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op+".rotate", err)
	}
	img, err := ref.ToImage(govips.NewDefaultPNGExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op+".export", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrInvalidDimensions)
	}

	format := formatOf(ref.Format())
	return &core.ImageData{
		Image:  img,
		Format: format,
		Meta: core.Metadata{
			Width:      b.Dx(),
			Height:     b.Dy(),
			Format:     format,
			ColorSpace: colorSpace(ref.Interpretation()),
			HasAlpha:   ref.HasAlpha(),
		},
	}, nil
}

// Register installs d for every format it handles, replacing the Go decoders.
func Register(reg interface {
	RegisterDecoder(core.Format, core.Decoder)
}, d *Decoder) {
	for _, f := range d.Formats() {
		reg.RegisterDecoder(f, d)
	}
}

func formatOf(t govips.ImageType) core.Format {
	switch t {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeGIF:
		return core.FormatGIF
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	}
	return core.FormatUnknown
}

func colorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

var _ core.Decoder = (*Decoder)(nil)
