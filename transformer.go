// Package docintake turns an uploaded identity-document photo into the
// normalised, watermarked JPEG that gets filed.
package docintake

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/image/font/opentype"

	"github.com/Skryldev/doc-intake/adapters/decoder"
	"github.com/Skryldev/doc-intake/adapters/encoder"
	"github.com/Skryldev/doc-intake/config"
	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/pipeline"
)

// OutputMimeType is the media type of every transformed artifact.
const OutputMimeType = "image/jpeg"

// Output is a transformed artifact.
type Output struct {
	Data          []byte
	Width, Height int
	MimeType      string
}

// Transformer resizes, watermarks and JPEG-encodes document images.  It is
// safe for concurrent use.
type Transformer struct {
	cfg  config.Config
	proc *core.Processor
	reg  *core.DefaultRegistry
	font *opentype.Font
}

// NewTransformer creates a Transformer with the Go codecs registered.  The
// watermark font is read from cfg.Watermark.FontPath when set.
func NewTransformer(cfg config.Config) (*Transformer, error) {
	var ttf []byte
	if cfg.Watermark.FontPath != "" {
		b, err := os.ReadFile(cfg.Watermark.FontPath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryConfig, "transformer.font", err)
		}
		ttf = b
	}
	f, err := pipeline.ParseFont(ttf)
	if err != nil {
		return nil, err
	}

	reg := core.NewRegistry()
	decoder.RegisterAll(reg)
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.Transform.Quality))

	return &Transformer{
		cfg:  cfg,
		proc: core.New(cfg, reg),
		reg:  reg,
		font: f,
	}, nil
}

// SetLogger attaches a structured logger.
func (t *Transformer) SetLogger(l core.Logger) { t.proc.SetLogger(l) }

// SetMetrics attaches a metrics collector.
func (t *Transformer) SetMetrics(m core.MetricsCollector) { t.proc.SetMetrics(m) }

// AddHook registers an observer for pipeline step events.
func (t *Transformer) AddHook(h core.Hook) { t.proc.AddHook(h) }

// RegisterDecoder registers a custom decoder for the given format.
func (t *Transformer) RegisterDecoder(f core.Format, d core.Decoder) { t.reg.RegisterDecoder(f, d) }

// Registry exposes the codec registry.
func (t *Transformer) Registry() core.Registry { return t.reg }

// Stats returns lightweight processing statistics.
func (t *Transformer) Stats() (processed, errors int64) {
	return t.proc.ProcessedCount(), t.proc.ErrorCount()
}

// Caption returns the watermark text stamped on an image processed at now.
func (t *Transformer) Caption(now time.Time) string {
	return fmt.Sprintf("%s %s", t.cfg.Watermark.Caption, now.Format("2006-01-02"))
}

// Pipeline returns the step list for an image processed at now.
func (t *Transformer) Pipeline(now time.Time) *pipeline.Pipeline {
	wm := t.cfg.Watermark
	return pipeline.New().Use(
		&pipeline.DecodeStep{Registry: t.reg, MaxPixels: t.cfg.Transform.MaxPixels},
		&pipeline.ResizeStep{Width: t.cfg.Transform.TargetWidth, AllowUpscale: t.cfg.Transform.AllowUpscale},
		&pipeline.WatermarkStep{
			Text:         t.Caption(now),
			Font:         t.font,
			Angle:        wm.Angle,
			MinSize:      wm.MinFontSize,
			Scale:        wm.FontScale,
			ShadowOffset: wm.ShadowOffset,
		},
		&pipeline.FormatStep{Format: core.FormatJPEG},
		&pipeline.QualityStep{Quality: t.cfg.Transform.Quality},
		&pipeline.EncodeStep{Registry: t.reg},
	)
}

// Transform reads an image from r and returns the watermarked JPEG.  A
// mimeType outside image/* is rejected before r is read.  The date in the
// caption comes from now, so equal input and equal now give equal bytes.
func (t *Transformer) Transform(ctx context.Context, r io.Reader, mimeType string, now time.Time) (*Output, error) {
	if !core.IsImageContentType(mimeType) {
		return nil, apperrors.New(apperrors.CategoryValidation, "transform",
			fmt.Errorf("%w: %q", apperrors.ErrNotImage, mimeType))
	}

	src := core.Source{Reader: r, ContentType: mimeType, Size: -1}
	res, err := t.proc.Process(ctx, src, t.Pipeline(now).Steps()...)
	if err != nil {
		return nil, err
	}
	img := res.Primary
	return &Output{
		Data:     img.Data,
		Width:    img.Meta.Width,
		Height:   img.Meta.Height,
		MimeType: OutputMimeType,
	}, nil
}
