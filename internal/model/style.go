package model

// LogoSettings controls the brand logo layer
type LogoSettings struct {
	Position         LogoPosition      `json:"position" validate:"required"`
	Size             LogoSize          `json:"size" validate:"required"`
	Shape            LogoShape         `json:"shape"`
	Background       LogoBackground    `json:"background" validate:"required"`
	Opacity          float64           `json:"opacity" validate:"min=0,max=1"`
	Animation        LogoAnimation     `json:"animation"`
	Entrance         EntranceAnimation `json:"entrance"`
	EntranceDuration int               `json:"entranceDuration" validate:"min=0,max=10000"` // ms
}

// TextComposition controls typography and badge sizing
type TextComposition struct {
	TextScalePct    int             `json:"textScalePct" validate:"min=-50,max=100"`
	BadgeScalePct   int             `json:"badgeScalePct" validate:"min=-50,max=100"`
	BadgeStyle      BadgeStyle      `json:"badgeStyle"`
	VerticalSpacing VerticalSpacing `json:"verticalSpacing"`
}

// VisualLayers toggles each painted element independently
type VisualLayers struct {
	Photo bool `json:"photo"`
	Price bool `json:"price"`
	Badge bool `json:"badge"`
	Icons bool `json:"icons"`
	Logo  bool `json:"logo"`
	CTA   bool `json:"cta"`
}

// AllLayers returns a VisualLayers with every element on.
func AllLayers() VisualLayers {
	return VisualLayers{Photo: true, Price: true, Badge: true, Icons: true, Logo: true, CTA: true}
}

// GradientSettings controls the veils over the photo
type GradientSettings struct {
	Direction GradientDirection `json:"direction"`
	Intensity int               `json:"intensity" validate:"min=0,max=100"`
}

// StyleConfig is the full visual configuration for a render
type StyleConfig struct {
	Canvas            CanvasFormat      `json:"canvas" validate:"required,oneof=vertical square"`
	Logo              LogoSettings      `json:"logo"`
	Text              TextComposition   `json:"text"`
	Layers            VisualLayers      `json:"layers"`
	Gradient          GradientSettings  `json:"gradient"`
	SummaryBackground SummaryBackground `json:"summaryBackground"`
	Summary           bool              `json:"summary"`
}

// DefaultStyle returns the style used when a client sends none.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		Canvas: CanvasVertical,
		Logo: LogoSettings{
			Position:         LogoTopRight,
			Size:             LogoMedium,
			Shape:            ShapeRounded,
			Background:       BackgroundNone,
			Opacity:          1,
			Animation:        AnimationNone,
			Entrance:         EntranceFade,
			EntranceDuration: 800,
		},
		Text: TextComposition{
			BadgeStyle:      BadgeRounded,
			VerticalSpacing: SpacingNormal,
		},
		Layers:            AllLayers(),
		Gradient:          GradientSettings{Direction: GradientBoth, Intensity: 60},
		SummaryBackground: SummaryBlur,
	}
}
