// Package still serializes a rendered surface to a PNG or JPEG file.
package still

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
)

// Options controls a still export
type Options struct {
	Format    model.ExportFormat
	Quality   float64 // 0-1, JPEG only
	Watermark string
	Fonts     *assets.Fonts
}

// JPEGQuality maps a 0-1 quality to the encoder's 1-100 scale.
func JPEGQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// ContentType returns the MIME type of a still format.
func ContentType(f model.ExportFormat) string {
	if f == model.FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Export writes the current surface to w. The text watermark, when set, is
// painted onto the surface first.
func Export(ctx context.Context, s *render.Surface, w io.Writer, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Format != model.FormatPNG && opts.Format != model.FormatJPEG {
		return exporterr.Unknown("format", opts.Format)
	}
	if ref, ok := s.Tainted(); ok {
		return &exporterr.RenderCaptureError{Err: &exporterr.ExportSecurityError{Ref: ref}}
	}

	if opts.Watermark != "" && opts.Fonts != nil {
		drawWatermark(s, opts.Watermark, opts.Fonts)
	}

	var err error
	switch opts.Format {
	case model.FormatJPEG:
		err = s.EncodeJPEG(w, JPEGQuality(opts.Quality))
	default:
		err = s.EncodePNG(w)
	}
	if err != nil {
		return &exporterr.RenderCaptureError{Err: fmt.Errorf("encode %s: %w", opts.Format, err)}
	}
	return nil
}

// drawWatermark paints semi-transparent text in the bottom-left corner.
func drawWatermark(s *render.Surface, text string, fonts *assets.Fonts) {
	canvas := s.Canvas()
	size := float64(canvas.Width) / 40
	margin := size * 1.5

	ctx := s.Context()
	ctx.SetFont(fonts.Face(true, size))
	ctx.SetFillBrush(gg.Solid(gg.RGBA{A: 0.35}))
	ctx.DrawString(text, margin+1, float64(canvas.Height)-margin+1)
	ctx.SetFillBrush(gg.Solid(gg.RGBA{R: 1, G: 1, B: 1, A: 0.55}))
	ctx.DrawString(text, margin, float64(canvas.Height)-margin)
}
