package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"github.com/listingcast/api/internal/geometry"
)

var (
	white    = gg.RGBA{R: 1, G: 1, B: 1, A: 1}
	ink      = gg.RGBA{R: 0.11, G: 0.11, B: 0.13, A: 1}
	fallback = gg.RGBA{R: 0.12, G: 0.16, B: 0.22, A: 1} // #1F2937
)

// painter accumulates the first fill error so layers can be written as
// straight-line drawing code.
type painter struct {
	ctx *gg.Context
	err error
}

func (p *painter) fill() {
	if err := p.ctx.Fill(); err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) stroke() {
	if err := p.ctx.Stroke(); err != nil && p.err == nil {
		p.err = err
	}
}

func (p *painter) box(x, y, w, h, r float64) {
	if r <= 0 {
		p.ctx.DrawRectangle(x, y, w, h)
		return
	}
	p.ctx.DrawRoundedRectangle(x, y, w, h, math.Min(r, math.Min(w, h)/2))
}

func (p *painter) fillBox(x, y, w, h, r float64, c gg.RGBA) {
	p.ctx.SetFillBrush(gg.Solid(c))
	p.box(x, y, w, h, r)
	p.fill()
}

// shadow paints an offset shadow under a box. A positive spread is faked
// with a few growing, fainter copies.
func (p *painter) shadow(x, y, w, h, r float64, s geometry.Shadow) {
	if s.Color.A == 0 {
		return
	}
	if s.Spread <= 0 {
		p.fillBox(x+s.DX, y+s.DY, w, h, r, straight(s.Color, 1))
		return
	}
	const steps = 4
	for i := steps; i >= 1; i-- {
		grow := s.Spread * float64(i) / steps
		p.fillBox(x+s.DX-grow/2, y+s.DY-grow/2, w+grow, h+grow, r+grow/2, straight(s.Color, 1.0/steps))
	}
}

// shadowedText draws s with a drop shadow at baseline (x, y).
func (p *painter) shadowedText(s string, x, y float64, sh geometry.Shadow, c gg.RGBA) {
	if sh.Color.A > 0 {
		p.ctx.SetFillBrush(gg.Solid(straight(sh.Color, 1)))
		p.ctx.DrawString(s, x+sh.DX, y+sh.DY)
	}
	p.ctx.SetFillBrush(gg.Solid(c))
	p.ctx.DrawString(s, x, y)
}

// straight converts a non-premultiplied color, scaling its alpha by k.
func straight(c color.NRGBA, k float64) gg.RGBA {
	return gg.RGBA{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: float64(c.A) / 255 * k,
	}
}

func withAlpha(c gg.RGBA, a float64) gg.RGBA {
	c.A *= a
	return c
}

// brandColor parses a hex brand color, or returns def when unset.
func brandColor(hex string, def gg.RGBA) gg.RGBA {
	if hex == "" {
		return def
	}
	return gg.Hex(hex)
}

// shapedImage fits img to w×h (cover) and cuts it to a rounded box of
// radius r.
func shapedImage(img image.Image, w, h int, r float64) *image.NRGBA {
	return roundMask(imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), r)
}

// roundMask cuts img to a rounded box of radius r using an alpha mask drawn
// with gg.
func roundMask(img *image.NRGBA, r float64) *image.NRGBA {
	if r <= 0 {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	mc := gg.NewContext(w, h)
	defer mc.Close()
	mp := &painter{ctx: mc}
	mp.fillBox(0, 0, float64(w), float64(h), r, white)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.DrawMask(out, out.Bounds(), img, img.Bounds().Min, mc.Image(), image.Point{}, draw.Over)
	return out
}
