package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Skryldev/doc-intake/config"
	apperrors "github.com/Skryldev/doc-intake/errors"
	"github.com/Skryldev/doc-intake/utils"
)

// Processor drains a Source into memory and runs steps over it.  It holds no
// per-request state and is safe for concurrent use.
type Processor struct {
	maxBytes  int64
	chunkSize int
	registry  Registry
	hooks     []Hook
	logger    Logger
	metrics   MetricsCollector

	processedCount int64
	errorCount     int64
}

// New creates a Processor bounded by cfg.MaxUploadBytes.
func New(cfg config.Config, reg Registry) *Processor {
	return &Processor{
		maxBytes:  cfg.MaxUploadBytes,
		chunkSize: cfg.ChunkSize,
		registry:  reg,
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) { p.logger = l }

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a pipeline hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the underlying registry so callers can register
// encoders/decoders after construction.
func (p *Processor) Registry() Registry { return p.registry }

// Process reads from src, runs steps in order and returns the final image.
// Steps run exactly once; the first failure aborts the run.
func (p *Processor) Process(ctx context.Context, src Source, steps ...Step) (*ProcessingResult, error) {
	if len(steps) == 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, "process", apperrors.ErrEmptyInput)
	}

	start := time.Now()

	// --- 1. Drain source into memory (respecting max size limit) -------------
	limitedR := src.Reader
	if p.maxBytes > 0 {
		limitedR = &utils.LimitedReader{R: src.Reader, Max: p.maxBytes}
	}

	buf, err := utils.DrainReader(ctx, limitedR, p.chunkSize)
	if err != nil {
		p.fail()
		if errors.Is(err, apperrors.ErrTooLarge) {
			return nil, apperrors.New(apperrors.CategoryValidation, "process.drain", err)
		}
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "process.drain", err)
	}
	rawBytes := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	if len(rawBytes) == 0 {
		p.fail()
		return nil, apperrors.New(apperrors.CategoryDecode, "process", apperrors.ErrEmptyInput)
	}
	if p.metrics != nil {
		p.metrics.RecordThroughput(int64(len(rawBytes)))
	}

	// --- 2. Detect format: sniffed bytes win over the declared type ----------
	format := Format(utils.DetectFormat(rawBytes))
	if format == FormatUnknown {
		format = ContentTypeToFormat(src.ContentType)
	}

	img := &ImageData{
		Data:         rawBytes,
		Format:       format,
		OriginalSize: int64(len(rawBytes)),
	}

	// --- 3. Run steps --------------------------------------------------------
	timings := make(map[string]time.Duration, len(steps))
	current := img
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			p.fail()
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, step.Name(), err)
		}
		p.notifyBefore(ctx, step.Name(), current)
		t := time.Now()
		next, stepErr := step.Execute(ctx, current)
		elapsed := time.Since(t)
		timings[step.Name()] = elapsed
		p.notifyAfter(ctx, step.Name(), next, elapsed, stepErr)
		if stepErr != nil {
			p.fail()
			if p.logger != nil {
				p.logger.Warn("process.failed", "step", step.Name(), "source", src.Name, "error", stepErr.Error())
			}
			return nil, stepErr
		}
		current = next
	}

	atomic.AddInt64(&p.processedCount, 1)

	return &ProcessingResult{
		Primary:        current,
		ProcessingTime: time.Since(start),
		StepTimings:    timings,
	}, nil
}

func (p *Processor) fail() { atomic.AddInt64(&p.errorCount, 1) }

func (p *Processor) notifyBefore(ctx context.Context, name string, img *ImageData) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, img *ImageData, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}

// ContentTypeToFormat maps MIME types to Format values.
func ContentTypeToFormat(ct string) Format {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/gif":
		return FormatGIF
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP
	case "image/tiff":
		return FormatTIFF
	}
	return FormatUnknown
}

// IsImageContentType reports whether ct declares an image/* media type.
func IsImageContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

// ProcessedCount returns the total number of successfully processed images.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of processing errors.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
