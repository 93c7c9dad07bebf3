package geometry

import (
	"image/color"
	"time"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

const logoMargin = 48

// LogoPixels returns the logo edge length for a size bucket. Square canvases
// use the first value, vertical canvases the second.
func LogoPixels(size model.LogoSize, square bool) (float64, error) {
	var sq, vert float64
	switch size {
	case model.LogoSmall:
		sq, vert = 60, 80
	case model.LogoMedium:
		sq, vert = 70, 90
	case model.LogoLarge:
		sq, vert = 80, 100
	case model.LogoXLarge:
		sq, vert = 90, 90
	default:
		return 0, exporterr.Unknown("logo.size", size)
	}
	if square {
		return sq, nil
	}
	return vert, nil
}

// BackgroundFor returns the paint style of a logo background treatment.
func BackgroundFor(bg model.LogoBackground) (BackgroundPaint, error) {
	switch bg {
	case model.BackgroundNone:
		return BackgroundPaint{Kind: bg}, nil
	case model.BackgroundFrosted:
		return BackgroundPaint{
			Kind:    bg,
			Padding: 14,
			Fill:    color.NRGBA{R: 255, G: 255, B: 255, A: 56},
			Border:  color.NRGBA{R: 255, G: 255, B: 255, A: 90},
		}, nil
	case model.BackgroundGlow:
		return BackgroundPaint{
			Kind:    bg,
			Padding: 10,
			Fill:    color.NRGBA{R: 255, G: 255, B: 255, A: 115},
			Glow:    18,
		}, nil
	case model.BackgroundElevated:
		return BackgroundPaint{
			Kind:    bg,
			Padding: 12,
			Fill:    color.NRGBA{R: 255, G: 255, B: 255, A: 242},
			Shadow:  Shadow{DX: 0, DY: 8, Spread: 16, Color: color.NRGBA{A: 90}},
		}, nil
	case model.BackgroundHolographic:
		return BackgroundPaint{
			Kind:    bg,
			Padding: 12,
			Stops: []color.NRGBA{
				{R: 0x8E, G: 0xC5, B: 0xFC, A: 217},
				{R: 0xE0, G: 0xC3, B: 0xFC, A: 217},
				{R: 0xFF, G: 0xFF, B: 0xFF, A: 217},
			},
		}, nil
	case model.BackgroundIridescent:
		return BackgroundPaint{
			Kind:    bg,
			Padding: 12,
			Stops: []color.NRGBA{
				{R: 0xFF, G: 0x9A, B: 0x9E, A: 217},
				{R: 0xFA, G: 0xD0, B: 0xC4, A: 217},
				{R: 0xA1, G: 0xC4, B: 0xFD, A: 217},
				{R: 0xC2, G: 0xE9, B: 0xFB, A: 217},
			},
		}, nil
	}
	return BackgroundPaint{}, exporterr.Unknown("logo.background", bg)
}

// CornerRadius returns the clip radius of a logo shape. A missing shape is rounded.
func CornerRadius(shape model.LogoShape, size float64) (model.LogoShape, float64, error) {
	switch shape {
	case model.ShapeSquare:
		return shape, 0, nil
	case model.ShapeRounded, "":
		return model.ShapeRounded, size * 0.18, nil
	case model.ShapeCircle:
		return shape, size / 2, nil
	case model.ShapeSquircle:
		return shape, size * 0.32, nil
	}
	return "", 0, exporterr.Unknown("logo.shape", shape)
}

func anchor(pos model.LogoPosition, size, pad float64, canvas model.Canvas) (float64, float64, error) {
	w := float64(canvas.Width)
	h := float64(canvas.Height)
	inset := logoMargin + pad
	switch pos {
	case model.LogoTopLeft:
		return inset, inset, nil
	case model.LogoTopRight:
		return w - inset - size, inset, nil
	case model.LogoBottomCenter:
		bottom := 140.0
		if canvas.IsSquare() {
			bottom = 100
		}
		return (w - size) / 2, h - bottom - pad - size, nil
	}
	return 0, 0, exporterr.Unknown("logo.position", pos)
}

func checkAnimation(a model.LogoAnimation) (model.LogoAnimation, error) {
	switch a {
	case model.AnimationNone, "":
		return model.AnimationNone, nil
	case model.AnimationPulse, model.AnimationFloat:
		return a, nil
	}
	return "", exporterr.Unknown("logo.animation", a)
}

func checkEntrance(e model.EntranceAnimation) (model.EntranceAnimation, error) {
	switch e {
	case model.EntranceNone, "":
		return model.EntranceNone, nil
	case model.EntranceFade, model.EntranceZoom, model.EntranceSlide:
		return e, nil
	}
	return "", exporterr.Unknown("logo.entrance", e)
}

func resolveLogo(s model.LogoSettings, canvas model.Canvas) (Logo, error) {
	size, err := LogoPixels(s.Size, canvas.IsSquare())
	if err != nil {
		return Logo{}, err
	}
	bg, err := BackgroundFor(s.Background)
	if err != nil {
		return Logo{}, err
	}
	shape, radius, err := CornerRadius(s.Shape, size)
	if err != nil {
		return Logo{}, err
	}
	x, y, err := anchor(s.Position, size, bg.Padding, canvas)
	if err != nil {
		return Logo{}, err
	}
	anim, err := checkAnimation(s.Animation)
	if err != nil {
		return Logo{}, err
	}
	entrance, err := checkEntrance(s.Entrance)
	if err != nil {
		return Logo{}, err
	}

	// Zero opacity means unset; hiding the logo is a layer toggle.
	opacity := s.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}

	return Logo{
		X:            x,
		Y:            y,
		Size:         size,
		Shape:        shape,
		CornerRadius: radius,
		Opacity:      opacity,
		Background:   bg,
		Animation:    anim,
		Entrance:     entrance,
		EntranceFor:  time.Duration(s.EntranceDuration) * time.Millisecond,
	}, nil
}

// EaseOut is the cubic ease-out curve used by the logo entrance.
func EaseOut(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u*u
}

// EntranceProgress returns the entrance progress in [0,1] for a frame. Only the
// first frame animates; any other frame, or an elapsed time past the entrance
// duration, yields a fully visible logo.
func (l Logo) EntranceProgress(frameIndex int, elapsed time.Duration) float64 {
	if frameIndex != 0 || l.Entrance == model.EntranceNone || l.EntranceFor <= 0 {
		return 1
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= l.EntranceFor {
		return 1
	}
	return EaseOut(float64(elapsed) / float64(l.EntranceFor))
}
