package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // decode webp sources

	"gallery/internal/domain"
)

const (
	defaultOpacity = 0.4
	defaultScale   = 0.25
	edgeMargin     = 16

	// Floor for the size-budget quality walk; below this the output is
	// unusable anyway.
	minJPEGQuality = 30
)

// Transformer implements domain.AssetTransformer on top of the imaging
// library. It holds no per-request state and is safe for concurrent use.
type Transformer struct{}

// NewTransformer returns the production transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// ApplyWatermark composites the configured overlay onto the asset and
// re-encodes it in the source format (JPEG when the source format cannot be
// encoded). The returned format names the produced encoding.
func (t *Transformer) ApplyWatermark(data []byte, spec domain.WatermarkSpec) (domain.TransformResult, error) {
	base, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.TransformResult{}, fmt.Errorf("imaging: decode asset: %w", err)
	}

	overlay, err := t.renderOverlay(base, spec)
	if err != nil {
		return domain.TransformResult{}, err
	}

	opacity := spec.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = defaultOpacity
	}
	pos := overlayPosition(base.Bounds(), overlay.Bounds(), spec.Position)
	out := imaging.Overlay(base, overlay, pos, opacity)

	name := encodableFormat(srcFormat)
	encoded, err := encodeNamed(out, name, 0)
	if err != nil {
		return domain.TransformResult{}, err
	}
	return domain.TransformResult{Data: encoded, Format: name}, nil
}

// ResizeToProfile re-exports the asset according to the profile's
// dimensions, aspect, letterbox and size-budget rules.
func (t *Transformer) ResizeToProfile(data []byte, profile domain.OutputProfile) (domain.TransformResult, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.TransformResult{}, fmt.Errorf("imaging: decode asset: %w", err)
	}
	if profile.Width <= 0 || profile.Height <= 0 {
		return domain.TransformResult{}, fmt.Errorf("imaging: profile %q has no target dimensions", profile.Name)
	}

	name := normalizeFormat(profile.Format)
	if !supportedOutput(name) {
		return domain.TransformResult{}, fmt.Errorf("imaging: unsupported profile format %q", profile.Format)
	}

	var out *image.NRGBA
	switch {
	case profile.MaintainAspect && profile.Letterbox:
		fitted := imaging.Fit(img, profile.Width, profile.Height, imaging.Lanczos)
		canvas := imaging.New(profile.Width, profile.Height, parseHexColor(profile.LetterboxColor))
		out = imaging.PasteCenter(canvas, fitted)
	case profile.MaintainAspect:
		out = imaging.Fit(img, profile.Width, profile.Height, imaging.Lanczos)
	default:
		out = imaging.Resize(img, profile.Width, profile.Height, imaging.Lanczos)
	}

	quality := profile.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	encoded, err := encodeNamed(out, name, quality)
	if err != nil {
		return domain.TransformResult{}, err
	}

	// Size budget applies only where quality is a knob.
	if profile.MaxFileSizeKB > 0 && name == "jpeg" {
		for len(encoded) > profile.MaxFileSizeKB*1024 && quality > minJPEGQuality {
			quality -= 10
			encoded, err = encodeNamed(out, name, quality)
			if err != nil {
				return domain.TransformResult{}, err
			}
		}
	}

	return domain.TransformResult{Data: encoded, Format: name}, nil
}

func (t *Transformer) renderOverlay(base image.Image, spec domain.WatermarkSpec) (image.Image, error) {
	scale := spec.Scale
	if scale <= 0 || scale > 1 {
		scale = defaultScale
	}
	targetWidth := int(float64(base.Bounds().Dx()) * scale)
	if targetWidth < 1 {
		targetWidth = 1
	}

	switch spec.Type {
	case domain.WatermarkImage:
		if len(spec.ImageData) == 0 {
			return nil, fmt.Errorf("imaging: watermark image not resolved")
		}
		overlay, _, err := image.Decode(bytes.NewReader(spec.ImageData))
		if err != nil {
			return nil, fmt.Errorf("imaging: decode watermark: %w", err)
		}
		return imaging.Resize(overlay, targetWidth, 0, imaging.Lanczos), nil
	case domain.WatermarkText:
		text := strings.TrimSpace(spec.Text)
		if text == "" {
			return nil, fmt.Errorf("imaging: watermark text is empty")
		}
		return imaging.Resize(renderText(text), targetWidth, 0, imaging.Lanczos), nil
	default:
		return nil, fmt.Errorf("imaging: unknown watermark type %q", spec.Type)
	}
}

// renderText rasterizes text onto a transparent canvas sized to its bounds.
func renderText(text string) *image.NRGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	height := face.Metrics().Height.Ceil()
	if width < 1 {
		width = 1
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)
	return canvas
}

func overlayPosition(base, overlay image.Rectangle, position string) image.Point {
	bw, bh := base.Dx(), base.Dy()
	ow, oh := overlay.Dx(), overlay.Dy()

	switch strings.ToLower(strings.TrimSpace(position)) {
	case "top-left":
		return image.Pt(edgeMargin, edgeMargin)
	case "top-right":
		return image.Pt(bw-ow-edgeMargin, edgeMargin)
	case "bottom-left":
		return image.Pt(edgeMargin, bh-oh-edgeMargin)
	case "center":
		return image.Pt((bw-ow)/2, (bh-oh)/2)
	default: // bottom-right
		return image.Pt(bw-ow-edgeMargin, bh-oh-edgeMargin)
	}
}

// encodableFormat maps a decoded format name to a format we can write back,
// falling back to JPEG for formats with no encoder.
func encodableFormat(srcFormat string) string {
	name := normalizeFormat(srcFormat)
	if supportedOutput(name) {
		return name
	}
	return "jpeg"
}

func supportedOutput(name string) bool {
	switch name {
	case "jpeg", "png", "gif", "tiff", "bmp", "webp":
		return true
	}
	return false
}

func normalizeFormat(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, ".")))
	switch name {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	default:
		return name
	}
}

// encodeNamed writes img in the named format. webp goes through its own
// lossless encoder; the imaging library can only decode it.
func encodeNamed(img image.Image, name string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if name == "webp" {
		if err := nativewebp.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("imaging: encode webp: %w", err)
		}
		return buf.Bytes(), nil
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, fmt.Errorf("imaging: format %q: %w", name, err)
	}
	var opts []imaging.EncodeOption
	if format == imaging.JPEG && quality > 0 {
		opts = append(opts, imaging.JPEGQuality(quality))
	}
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.Black
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Black
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
