package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/Skryldev/doc-intake/core"
	apperrors "github.com/Skryldev/doc-intake/errors"
)

var (
	watermarkFill   = color.NRGBA{R: 255, G: 255, B: 255, A: 128}
	watermarkShadow = color.NRGBA{A: 128}
)

// ParseFont parses a TrueType/OpenType font.  A nil or empty ttf selects the
// embedded Go Bold face, which only covers Latin scripts; captions in other
// scripts need a font file that has their glyphs.
func ParseFont(ttf []byte) (*opentype.Font, error) {
	if len(ttf) == 0 {
		ttf = gobold.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "watermark.font", err)
	}
	return f, nil
}

// WatermarkStep draws Text across the centre of the image as translucent
// white lettering rotated by Angle degrees (negative tilts the text upwards,
// like SVG rotate()), over a translucent black shadow shifted ShadowOffset
// pixels right and down after rotation.  The font size is Scale × image
// width, never below MinSize.  Placement is fixed, so equal inputs give equal pixels.
type WatermarkStep struct {
	Text         string
	Font         *opentype.Font
	Angle        float64
	MinSize      float64
	Scale        float64
	ShadowOffset int
}

func (s *WatermarkStep) Name() string { return "watermark" }

// FontSize returns the point size used for an image of the given width.
func (s *WatermarkStep) FontSize(width int) float64 {
	return math.Max(s.MinSize, math.Floor(float64(width)*s.Scale))
}

func (s *WatermarkStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	src := img.Image
	if src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}
	if s.Text == "" || s.Font == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), fmt.Errorf("watermark text and font are required"))
	}

	bounds := src.Bounds()
	shadow, fill, err := s.renderOverlays(s.FontSize(bounds.Dx()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	ob := fill.Bounds()
	fillM, shadowM := s.placements(ob, dst.Bounds())
	xdraw.BiLinear.Transform(dst, shadowM, shadow, ob, xdraw.Over, nil)
	xdraw.BiLinear.Transform(dst, fillM, fill, ob, xdraw.Over, nil)

	out := *img
	out.Image = dst
	return &out, nil
}

// renderOverlays draws the caption twice, in the shadow and the fill colour,
// onto equal transparent canvases just large enough to hold it.
func (s *WatermarkStep) renderOverlays(size float64) (shadow, fill *image.NRGBA, err error) {
	face, err := opentype.NewFace(s.Font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, nil, err
	}
	defer face.Close()

	m := face.Metrics()
	advance := font.MeasureString(face, s.Text)
	pad := int(math.Ceil(size / 4))
	rect := image.Rect(0, 0, advance.Ceil()+2*pad, (m.Ascent+m.Descent).Ceil()+2*pad)
	dot := fixed.P(pad, pad+m.Ascent.Ceil())

	render := func(c color.Color) *image.NRGBA {
		canvas := image.NewNRGBA(rect)
		d := &font.Drawer{Dst: canvas, Src: image.NewUniform(c), Face: face, Dot: dot}
		d.DrawString(s.Text)
		return canvas
	}
	return render(watermarkShadow), render(watermarkFill), nil
}

// placements maps an overlay of bounds ob onto dst: the caption centred and
// rotated by Angle, and the shadow at the same spot moved ShadowOffset pixels
// right and down on screen.
func (s *WatermarkStep) placements(ob, dst image.Rectangle) (fill, shadow f64.Aff3) {
	fill = centredRotation(
		float64(ob.Dx())/2, float64(ob.Dy())/2,
		float64(dst.Dx())/2, float64(dst.Dy())/2,
		s.Angle,
	)
	shadow = fill
	shadow[2] += float64(s.ShadowOffset)
	shadow[5] += float64(s.ShadowOffset)
	return fill, shadow
}

// centredRotation maps source point (sx, sy) onto (dx, dy) rotated by deg
// degrees in y-down image space.
func centredRotation(sx, sy, dx, dy, deg float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return f64.Aff3{
		cos, -sin, dx - (cos*sx - sin*sy),
		sin, cos, dy - (sin*sx + cos*sy),
	}
}
