package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2500000", "$ 2.500.000"},
		{"$2500000", "$ 2.500.000"},
		{"1250000.4", "$ 1.250.000"},
		{"a consultar", "$ a consultar"},
		{"$abc", "$ $abc"},
		{"1e30", "$ 1e30"},
		{"99999999999999999999", "$ 99999999999999999999"},
		{"-1e19", "$ -1e19"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

type fixedWidth float64

func (w fixedWidth) Advance(s string) float64 {
	return float64(w) * float64(utf8.RuneCountInString(s))
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  float64
		want []string
	}{
		{"fits", "three bed flat", 200, []string{"three bed flat"}},
		{"wraps", "aaa bbb ccc", 75, []string{"aaa bbb", "ccc"}},
		{"long word alone", "a supercalifragilistic b", 50, []string{"a", "supercalifragilistic", "b"}},
		{"empty", "   ", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapText(fixedWidth(10), tt.text, tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLabels(t *testing.T) {
	l := &model.ListingData{PropertyType: model.PropertyHouse, Modality: model.ModalityRent}
	if got := Title(l); got != "House for rent" {
		t.Errorf("unexpected title %q", got)
	}
	if got := ClosedLabel(&model.ClosedInfo{Variant: model.ClosedSold, MarketDays: 12}); got != "SOLD in 12 days" {
		t.Errorf("unexpected closed label %q", got)
	}
	if got := ClosedLabel(&model.ClosedInfo{Variant: model.ClosedLeased}); got != "LEASED" {
		t.Errorf("unexpected closed label %q", got)
	}
	if got := CTA(&model.BrandConfig{Contact: "@acme"}); got != "Contact @acme" {
		t.Errorf("unexpected default CTA %q", got)
	}
	if got := CTA(&model.BrandConfig{Contact: "@acme", CTAText: "Book a visit"}); got != "Book a visit" {
		t.Errorf("expected CTA override, got %q", got)
	}
}

func TestChips_SkipAbsentAttributes(t *testing.T) {
	r := NewRenderer("es")
	chips := r.Chips(&model.ListingData{Rooms: 3, Area: 1250})
	if len(chips) != 2 {
		t.Fatalf("expected 2 chips, got %d", len(chips))
	}
	if chips[0].Label != "beds" || chips[1].Value != "1250" && chips[1].Value != "1.250" {
		t.Errorf("unexpected chips %+v", chips)
	}
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testInput(t *testing.T, style model.StyleConfig) Input {
	t.Helper()
	canvas, _ := model.CanvasFor(model.CanvasSquare)
	g, err := geometry.Resolve(style, canvas)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	fonts, err := assets.LoadFonts("")
	if err != nil {
		t.Fatalf("fonts: %v", err)
	}
	return Input{
		Listing: &model.ListingData{
			PropertyType: model.PropertyApartment,
			Modality:     model.ModalitySale,
			SalePrice:    "2500000",
			Location:     "Chapinero, Bogotá",
			Rooms:        3,
			Baths:        2,
			Parking:      1,
			Area:         84,
			Subtitles:    []string{"Bright corner unit with a view"},
		},
		Brand:    &model.BrandConfig{Name: "Acme Realty", PrimaryColor: "#2563EB", Contact: "@acme"},
		Style:    style,
		Geometry: g,
		Elapsed:  2 * time.Second,
		Assets: &assets.Set{
			Photos: []*assets.Image{{Ref: "photo-1", Img: solid(64, 48, color.NRGBA{R: 120, G: 160, B: 90, A: 255})}},
			Logo:   &assets.Image{Ref: "logo", Img: solid(16, 16, color.NRGBA{R: 200, A: 255})},
			Fonts:  fonts,
		},
	}
}

func renderOnce(t *testing.T, r *Renderer, s *Surface, in Input) *image.RGBA {
	t.Helper()
	tok := s.Issue()
	defer s.Invalidate(tok)
	if err := r.Render(s, tok, in); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	img, err := s.Capture()
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	return img
}

func TestRender_Deterministic(t *testing.T) {
	in := testInput(t, model.DefaultStyle())
	r := NewRenderer("es")
	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()

	a := renderOnce(t, r, s, in)
	b := renderOnce(t, r, s, in)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("expected identical pixels for identical input")
	}
}

func TestRender_StaleToken(t *testing.T) {
	in := testInput(t, model.DefaultStyle())
	r := NewRenderer("es")
	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()

	old := s.Issue()
	_ = s.Issue()
	if err := r.Render(s, old, in); !errors.Is(err, ErrStaleToken) {
		t.Errorf("expected ErrStaleToken for superseded token, got %v", err)
	}

	tok := s.Issue()
	s.Invalidate(tok)
	if err := r.Render(s, tok, in); !errors.Is(err, ErrStaleToken) {
		t.Errorf("expected ErrStaleToken for invalidated token, got %v", err)
	}
}

func TestRender_BackgroundNonePaintsNothing(t *testing.T) {
	style := model.DefaultStyle()
	style.Logo.Background = model.BackgroundNone
	in := testInput(t, style)
	in.Assets.Logo.Img = solid(16, 16, color.NRGBA{})

	r := NewRenderer("es")
	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()

	with := renderOnce(t, r, s, in)
	in.Style.Layers.Logo = false
	without := renderOnce(t, r, s, in)
	if !bytes.Equal(with.Pix, without.Pix) {
		t.Error("expected a transparent logo without background to paint nothing")
	}

	style.Logo.Background = model.BackgroundFrosted
	framed := testInput(t, style)
	framed.Assets.Logo.Img = solid(16, 16, color.NRGBA{})
	if bytes.Equal(renderOnce(t, r, s, framed).Pix, without.Pix) {
		t.Error("expected frosted background to paint")
	}
}

func TestRender_ToggleOnlyTouchesItsSlot(t *testing.T) {
	in := testInput(t, model.DefaultStyle())
	r := NewRenderer("es")
	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()

	with := renderOnce(t, r, s, in)
	in.Style.Layers.Icons = false
	without := renderOnce(t, r, s, in)

	g := in.Geometry
	top := int(g.ChipsTop) - 8
	bottom := int(g.ChipsTop+g.Chips.Diameter) + 8
	changed := false
	for y := 0; y < with.Rect.Dy(); y++ {
		row := with.Pix[y*with.Stride : (y+1)*with.Stride]
		other := without.Pix[y*without.Stride : (y+1)*without.Stride]
		if bytes.Equal(row, other) {
			continue
		}
		changed = true
		if y < top || y > bottom {
			t.Fatalf("toggling chips changed row %d outside the chip slot [%d,%d]", y, top, bottom)
		}
	}
	if !changed {
		t.Error("expected chips to paint")
	}
}

func TestRender_TaintedAssetBlocksCapture(t *testing.T) {
	in := testInput(t, model.DefaultStyle())
	in.Assets.Photos[0].Tainted = true

	r := NewRenderer("es")
	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()

	tok := s.Issue()
	if err := r.Render(s, tok, in); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	s.Invalidate(tok)

	if ref, ok := s.Tainted(); !ok || ref != "photo-1" {
		t.Errorf("expected surface tainted by photo-1, got %q %v", ref, ok)
	}
	var secErr *exporterr.ExportSecurityError
	if _, err := s.Capture(); !errors.As(err, &secErr) {
		t.Errorf("expected ExportSecurityError, got %v", err)
	}
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); !errors.As(err, &secErr) {
		t.Errorf("expected ExportSecurityError from PNG encode, got %v", err)
	}
}

func TestRender_SummaryBackgrounds(t *testing.T) {
	for _, mode := range []model.SummaryBackground{model.SummarySolid, model.SummaryBlur, model.SummaryMosaic} {
		t.Run(string(mode), func(t *testing.T) {
			style := model.DefaultStyle()
			style.SummaryBackground = mode
			in := testInput(t, style)
			in.Summary = true
			in.FrameIndex = 1
			in.Assets.Photos = append(in.Assets.Photos,
				&assets.Image{Ref: "photo-2", Img: solid(40, 40, color.NRGBA{B: 200, A: 255})},
				&assets.Image{Ref: "photo-3", Img: solid(40, 40, color.NRGBA{G: 200, A: 255})})

			r := NewRenderer("es")
			s := NewSurface(in.Geometry.Canvas)
			defer s.Close()
			renderOnce(t, r, s, in)
		})
	}
}

func TestRender_MosaicSummaryDoesNotChangeLaterFrames(t *testing.T) {
	style := model.DefaultStyle()
	style.SummaryBackground = model.SummaryMosaic
	in := testInput(t, style)

	s := NewSurface(in.Geometry.Canvas)
	defer s.Close()
	want := renderOnce(t, NewRenderer("es"), s, in)

	// With one photo the mosaic tile covers the whole canvas.
	shared := NewRenderer("es")
	summary := in
	summary.Summary = true
	summary.FrameIndex = 1
	renderOnce(t, shared, s, summary)

	got := renderOnce(t, shared, s, in)
	if !bytes.Equal(want.Pix, got.Pix) {
		t.Error("expected frame 0 to match a fresh renderer after a mosaic summary")
	}
}
