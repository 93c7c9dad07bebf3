// Package geometry resolves a StyleConfig into the pixel geometry and paint
// parameters used by the frame renderer. Everything here is pure.
package geometry

import (
	"image/color"
	"time"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

// Fraction of the frame covered by each gradient veil, and the veil alpha at
// full intensity.
const (
	VeilCoverage = 0.4
	VeilMaxAlpha = 0.7
	TextWidthPct = 0.85
)

// Shadow is an offset drop shadow
type Shadow struct {
	DX, DY float64
	Spread float64
	Color  color.NRGBA
}

// BackgroundPaint describes the treatment drawn beneath the logo
type BackgroundPaint struct {
	Kind    model.LogoBackground
	Padding float64
	Fill    color.NRGBA
	Border  color.NRGBA
	Stops   []color.NRGBA
	Glow    float64
	Shadow  Shadow
}

// Visible reports whether the treatment paints anything.
func (b BackgroundPaint) Visible() bool {
	return b.Kind != model.BackgroundNone
}

// Logo is the resolved brand logo box
type Logo struct {
	X, Y         float64
	Size         float64
	Shape        model.LogoShape
	CornerRadius float64
	Opacity      float64
	Background   BackgroundPaint
	Animation    model.LogoAnimation
	Entrance     model.EntranceAnimation
	EntranceFor  time.Duration
}

// Veil is one gradient band. Alpha ramps from FromAlpha at Y0 to ToAlpha at Y1.
type Veil struct {
	Y0, Y1             float64
	FromAlpha, ToAlpha float64
}

// Badge holds badge box parameters
type Badge struct {
	FontSize     float64
	PaddingX     float64
	PaddingY     float64
	LineSpacing  float64
	CornerRadius float64 // negative means half the box height
	Shadow       Shadow
}

// Text holds title/location typography
type Text struct {
	TitleSize    float64
	LocationSize float64
	CTASize      float64
	Shadow       Shadow
}

// Chips holds the feature chip row
type Chips struct {
	Diameter float64
	Gap      float64
	FontSize float64
}

// Watermark is the fixed bottom-right logo
type Watermark struct {
	X, Y    float64
	Size    float64
	Opacity float64
}

// Geometry is the resolved layout for one canvas
type Geometry struct {
	Canvas       model.Canvas
	Margin       float64
	MaxTextWidth float64
	TextScale    float64
	BadgeScale   float64
	SpacingDelta float64
	Gap          float64

	// Fixed slot anchors. Each element owns its slot so toggling one layer
	// never moves another.
	SubtitleTop      float64
	PriceBottom      float64
	TitleBaseline    float64
	LocationBaseline float64
	ChipsTop         float64
	CTABaseline      float64

	Logo      Logo
	Veils     []Veil
	Badge     Badge
	Text      Text
	Chips     Chips
	Watermark Watermark
}

// Resolve maps a style and a canvas size to concrete geometry.
func Resolve(style model.StyleConfig, canvas model.Canvas) (*Geometry, error) {
	square := canvas.IsSquare()
	w := float64(canvas.Width)
	h := float64(canvas.Height)

	textScale := scale(style.Text.TextScalePct)
	badgeScale := scale(style.Text.BadgeScalePct)

	delta, err := spacingDelta(style.Text.VerticalSpacing)
	if err != nil {
		return nil, err
	}

	logo, err := resolveLogo(style.Logo, canvas)
	if err != nil {
		return nil, err
	}

	veils, err := resolveVeils(style.Gradient, h)
	if err != nil {
		return nil, err
	}

	radius, err := badgeRadius(style.Text.BadgeStyle, badgeScale)
	if err != nil {
		return nil, err
	}

	if err := checkSummary(style.SummaryBackground); err != nil {
		return nil, err
	}

	margin, bottomPad, topPad := 64.0, 120.0, 220.0
	titleBase, locationBase, ctaBase, priceBase, chipBase := 64.0, 40.0, 34.0, 56.0, 96.0
	if square {
		margin, bottomPad, topPad = 56, 70, 150
		titleBase, locationBase, ctaBase, priceBase, chipBase = 54, 34, 30, 46, 80
	}

	g := &Geometry{
		Canvas:       canvas,
		Margin:       margin,
		MaxTextWidth: TextWidthPct * w,
		TextScale:    textScale,
		BadgeScale:   badgeScale,
		SpacingDelta: delta,
		Gap:          24 + delta,
		Logo:         logo,
		Veils:        veils,
		Badge: Badge{
			FontSize:     priceBase * badgeScale,
			PaddingX:     36 * badgeScale,
			PaddingY:     20 * badgeScale,
			LineSpacing:  1.25,
			CornerRadius: radius,
			Shadow:       Shadow{DX: 0, DY: 6, Spread: 10, Color: color.NRGBA{A: 77}},
		},
		Text: Text{
			TitleSize:    titleBase * textScale,
			LocationSize: locationBase * textScale,
			CTASize:      ctaBase * textScale,
			Shadow:       Shadow{DX: 0, DY: 3, Spread: 0, Color: color.NRGBA{A: 140}},
		},
		Chips: Chips{
			Diameter: chipBase * badgeScale,
			Gap:      20 * badgeScale,
			FontSize: chipBase * badgeScale * 0.3,
		},
		Watermark: Watermark{
			Size:    watermarkSize(square),
			Opacity: 0.5,
		},
	}
	g.Watermark.X = w - 32 - g.Watermark.Size
	g.Watermark.Y = h - 32 - g.Watermark.Size

	// Slots from the bottom up, then the subtitle slot from the top.
	g.CTABaseline = h - bottomPad
	g.ChipsTop = g.CTABaseline - g.Text.CTASize - g.Gap - g.Chips.Diameter
	g.LocationBaseline = g.ChipsTop - g.Gap
	g.TitleBaseline = g.LocationBaseline - g.Text.LocationSize - g.Gap/2
	g.PriceBottom = g.TitleBaseline - g.Text.TitleSize - g.Gap
	g.SubtitleTop = topPad + delta

	return g, nil
}

func scale(pct int) float64 {
	return 1 + float64(pct)/100
}

func watermarkSize(square bool) float64 {
	if square {
		return 56
	}
	return 64
}

func spacingDelta(s model.VerticalSpacing) (float64, error) {
	switch s {
	case model.SpacingCompact:
		return -10, nil
	case model.SpacingNormal, "":
		return 0, nil
	case model.SpacingSpacious:
		return 15, nil
	}
	return 0, exporterr.Unknown("text.verticalSpacing", s)
}

func badgeRadius(s model.BadgeStyle, badgeScale float64) (float64, error) {
	switch s {
	case model.BadgeRounded, "":
		return 18 * badgeScale, nil
	case model.BadgePill:
		return -1, nil
	case model.BadgeSquare:
		return 0, nil
	}
	return 0, exporterr.Unknown("text.badgeStyle", s)
}

func checkSummary(s model.SummaryBackground) error {
	switch s {
	case model.SummarySolid, model.SummaryBlur, model.SummaryMosaic, "":
		return nil
	}
	return exporterr.Unknown("summaryBackground", s)
}

func resolveVeils(g model.GradientSettings, h float64) ([]Veil, error) {
	alpha := float64(g.Intensity) / 100 * VeilMaxAlpha
	top := Veil{Y0: 0, Y1: VeilCoverage * h, FromAlpha: alpha, ToAlpha: 0}
	bottom := Veil{Y0: (1 - VeilCoverage) * h, Y1: h, FromAlpha: 0, ToAlpha: alpha}

	switch g.Direction {
	case model.GradientNone, "":
		return nil, nil
	case model.GradientTop:
		return []Veil{top}, nil
	case model.GradientBottom:
		return []Veil{bottom}, nil
	case model.GradientBoth:
		return []Veil{top, bottom}, nil
	}
	return nil, exporterr.Unknown("gradient.direction", g.Direction)
}
