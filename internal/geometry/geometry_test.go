package geometry

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

var (
	vertical = model.Canvas{Width: 1080, Height: 1920}
	square   = model.Canvas{Width: 1080, Height: 1080}
)

func TestResolve_Deterministic(t *testing.T) {
	style := model.DefaultStyle()
	style.Logo.Background = model.BackgroundIridescent
	style.Text.TextScalePct = 12

	a, err := Resolve(style, vertical)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	b, err := Resolve(style, vertical)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical geometry for identical input")
	}
}

func TestLogoPixels(t *testing.T) {
	tests := []struct {
		size   model.LogoSize
		square float64
		vert   float64
	}{
		{model.LogoSmall, 60, 80},
		{model.LogoMedium, 70, 90},
		{model.LogoLarge, 80, 100},
		{model.LogoXLarge, 90, 90},
	}
	for _, tt := range tests {
		sq, err := LogoPixels(tt.size, true)
		if err != nil {
			t.Fatalf("%s: %v", tt.size, err)
		}
		vert, _ := LogoPixels(tt.size, false)
		if sq != tt.square || vert != tt.vert {
			t.Errorf("%s: expected %v/%v, got %v/%v", tt.size, tt.square, tt.vert, sq, vert)
		}
	}
}

func TestResolve_SpacingDeltas(t *testing.T) {
	tests := map[model.VerticalSpacing]float64{
		model.SpacingCompact:  -10,
		model.SpacingNormal:   0,
		model.SpacingSpacious: 15,
	}
	for spacing, want := range tests {
		style := model.DefaultStyle()
		style.Text.VerticalSpacing = spacing
		g, err := Resolve(style, vertical)
		if err != nil {
			t.Fatalf("%s: %v", spacing, err)
		}
		if g.SpacingDelta != want {
			t.Errorf("%s: expected delta %v, got %v", spacing, want, g.SpacingDelta)
		}
	}
}

func TestResolve_ScalesAreMultiplicative(t *testing.T) {
	style := model.DefaultStyle()
	style.Text.TextScalePct = 20
	style.Text.BadgeScalePct = -10

	g, err := Resolve(style, square)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if math.Abs(g.TextScale-1.2) > 1e-9 {
		t.Errorf("expected text scale 1.2, got %v", g.TextScale)
	}
	if math.Abs(g.BadgeScale-0.9) > 1e-9 {
		t.Errorf("expected badge scale 0.9, got %v", g.BadgeScale)
	}
	if math.Abs(g.Text.TitleSize-54*1.2) > 1e-9 {
		t.Errorf("expected title size %v, got %v", 54*1.2, g.Text.TitleSize)
	}
}

func TestResolve_LogoAnchors(t *testing.T) {
	style := model.DefaultStyle()
	style.Logo.Size = model.LogoLarge

	style.Logo.Position = model.LogoTopLeft
	g, _ := Resolve(style, vertical)
	if g.Logo.X != logoMargin || g.Logo.Y != logoMargin {
		t.Errorf("top-left: got (%v,%v)", g.Logo.X, g.Logo.Y)
	}

	style.Logo.Position = model.LogoTopRight
	g, _ = Resolve(style, vertical)
	if g.Logo.X != 1080-logoMargin-100 {
		t.Errorf("top-right: got x=%v", g.Logo.X)
	}

	style.Logo.Position = model.LogoBottomCenter
	g, _ = Resolve(style, vertical)
	if g.Logo.X != (1080-100)/2 {
		t.Errorf("bottom-center: got x=%v", g.Logo.X)
	}
}

func TestResolve_Veils(t *testing.T) {
	style := model.DefaultStyle()
	style.Gradient = model.GradientSettings{Direction: model.GradientBoth, Intensity: 50}

	g, err := Resolve(style, vertical)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(g.Veils) != 2 {
		t.Fatalf("expected 2 veils, got %d", len(g.Veils))
	}
	top := g.Veils[0]
	if math.Abs(top.FromAlpha-0.35) > 1e-9 || top.ToAlpha != 0 {
		t.Errorf("unexpected top veil alpha %v -> %v", top.FromAlpha, top.ToAlpha)
	}
	if top.Y1 != 0.4*1920 {
		t.Errorf("expected top veil to cover 40%%, got %v", top.Y1)
	}

	style.Gradient.Direction = model.GradientNone
	g, _ = Resolve(style, vertical)
	if len(g.Veils) != 0 {
		t.Errorf("expected no veils for none, got %d", len(g.Veils))
	}
}

func TestResolve_UnknownEnums(t *testing.T) {
	mutations := map[string]func(*model.StyleConfig){
		"position":   func(s *model.StyleConfig) { s.Logo.Position = "middle" },
		"size":       func(s *model.StyleConfig) { s.Logo.Size = "huge" },
		"shape":      func(s *model.StyleConfig) { s.Logo.Shape = "star" },
		"background": func(s *model.StyleConfig) { s.Logo.Background = "neon" },
		"spacing":    func(s *model.StyleConfig) { s.Text.VerticalSpacing = "airy" },
		"gradient":   func(s *model.StyleConfig) { s.Gradient.Direction = "left" },
		"summary":    func(s *model.StyleConfig) { s.SummaryBackground = "video" },
		"entrance":   func(s *model.StyleConfig) { s.Logo.Entrance = "bounce" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			style := model.DefaultStyle()
			mutate(&style)
			_, err := Resolve(style, vertical)
			var cfgErr *exporterr.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestResolve_MissingShapeDefaultsToRounded(t *testing.T) {
	style := model.DefaultStyle()
	style.Logo.Shape = ""

	g, err := Resolve(style, vertical)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if g.Logo.Shape != model.ShapeRounded {
		t.Errorf("expected rounded, got %s", g.Logo.Shape)
	}
}

func TestBackgroundNoneIsInvisible(t *testing.T) {
	bg, err := BackgroundFor(model.BackgroundNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bg.Visible() {
		t.Error("expected background none to paint nothing")
	}
}

func TestEntranceProgress(t *testing.T) {
	logo := Logo{Entrance: model.EntranceZoom, EntranceFor: time.Second}

	if p := logo.EntranceProgress(0, 0); p != 0 {
		t.Errorf("expected 0 at start, got %v", p)
	}
	if p := logo.EntranceProgress(0, 500*time.Millisecond); math.Abs(p-0.875) > 1e-9 {
		t.Errorf("expected ease-out 0.875 at half time, got %v", p)
	}
	if p := logo.EntranceProgress(0, time.Second); p != 1 {
		t.Errorf("expected 1 once complete, got %v", p)
	}
	if p := logo.EntranceProgress(2, 0); p != 1 {
		t.Errorf("expected other frames fully visible, got %v", p)
	}
}
