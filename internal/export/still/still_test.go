package still

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
)

func TestJPEGQuality(t *testing.T) {
	tests := map[float64]int{0: 1, 0.004: 1, 0.5: 50, 0.93: 93, 1: 100, 1.7: 100}
	for in, want := range tests {
		if got := JPEGQuality(in); got != want {
			t.Errorf("JPEGQuality(%v): expected %d, got %d", in, want, got)
		}
	}
}

func renderedSurface(t *testing.T, tainted bool) *render.Surface {
	t.Helper()
	canvas, _ := model.CanvasFor(model.CanvasSquare)
	style := model.DefaultStyle()
	g, err := geometry.Resolve(style, canvas)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	s := render.NewSurface(canvas)
	t.Cleanup(func() { _ = s.Close() })

	photo := &assets.Image{Ref: "https://other.test/p.jpg", Img: image.NewNRGBA(image.Rect(0, 0, 4, 4)), Tainted: tainted}
	tok := s.Issue()
	defer s.Invalidate(tok)
	err = render.NewRenderer("es").Render(s, tok, render.Input{
		Listing:  &model.ListingData{PropertyType: model.PropertyLand, Modality: model.ModalitySale},
		Style:    style,
		Geometry: g,
		Assets:   &assets.Set{Photos: []*assets.Image{photo}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return s
}

func TestExport_PNGAndJPEG(t *testing.T) {
	s := renderedSurface(t, false)
	fonts, err := assets.LoadFonts("")
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}

	var pngBuf bytes.Buffer
	if err := Export(context.Background(), s, &pngBuf, Options{Format: model.FormatPNG, Watermark: "ListingCast", Fonts: fonts}); err != nil {
		t.Fatalf("png export failed: %v", err)
	}
	if _, err := png.Decode(&pngBuf); err != nil {
		t.Errorf("expected a valid PNG: %v", err)
	}

	var jpgBuf bytes.Buffer
	if err := Export(context.Background(), s, &jpgBuf, Options{Format: model.FormatJPEG, Quality: 0.8}); err != nil {
		t.Fatalf("jpeg export failed: %v", err)
	}
	img, err := jpeg.Decode(&jpgBuf)
	if err != nil {
		t.Fatalf("expected a valid JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1080 {
		t.Errorf("unexpected size %v", b)
	}
}

func TestExport_TaintedSurface(t *testing.T) {
	s := renderedSurface(t, true)

	var buf bytes.Buffer
	err := Export(context.Background(), s, &buf, Options{Format: model.FormatPNG})

	var capErr *exporterr.RenderCaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected RenderCaptureError, got %v", err)
	}
	var secErr *exporterr.ExportSecurityError
	if !errors.As(err, &secErr) {
		t.Errorf("expected wrapped ExportSecurityError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("expected nothing written for a tainted surface")
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	s := renderedSurface(t, false)
	var cfgErr *exporterr.ConfigError
	if err := Export(context.Background(), s, &bytes.Buffer{}, Options{Format: model.FormatGIF}); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}
