// Package render paints one listing frame onto a Surface in a fixed layer
// order: background, veils, badges, title and location, chips, CTA, brand
// logo, watermark.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"golang.org/x/text/message"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
)

const (
	summaryBlurSigma = 28
	maxCachedImages  = 32
)

// Input is everything needed to paint one frame
type Input struct {
	Listing    *model.ListingData
	Brand      *model.BrandConfig
	Style      model.StyleConfig
	Geometry   *geometry.Geometry
	Assets     *assets.Set
	FrameIndex int
	Elapsed    time.Duration
	Summary    bool
}

type cacheKey struct {
	img  *assets.Image
	w, h int
	kind string
	arg  float64
}

// Renderer paints frames. It keeps scaled copies of assets between frames.
type Renderer struct {
	printer *message.Printer

	mu    sync.Mutex
	cache map[cacheKey]*gg.ImageBuf
}

func NewRenderer(locale string) *Renderer {
	return &Renderer{
		printer: NewPrinter(locale),
		cache:   make(map[cacheKey]*gg.ImageBuf),
	}
}

// FormatPrice formats a raw price with the renderer's locale.
func (r *Renderer) FormatPrice(raw string) string {
	return formatPrice(r.printer, raw)
}

// Render repaints the whole surface for one frame. tok must be the surface's
// current token.
func (r *Renderer) Render(s *Surface, tok Token, in Input) error {
	if err := s.check(tok); err != nil {
		return err
	}
	if in.Listing == nil || in.Geometry == nil {
		return errors.New("render input requires a listing and geometry")
	}
	if in.Geometry.Canvas != s.canvas {
		return fmt.Errorf("geometry for %dx%d does not match surface %dx%d",
			in.Geometry.Canvas.Width, in.Geometry.Canvas.Height, s.canvas.Width, s.canvas.Height)
	}
	if in.Brand == nil {
		in.Brand = &model.BrandConfig{}
	}
	if in.Assets == nil {
		in.Assets = &assets.Set{}
	}

	// A full repaint leaves no pixels from earlier frames.
	s.tainted = ""
	s.ctx.ClearWithColor(gg.RGBA{A: 1})

	f := &frame{
		r:     r,
		s:     s,
		p:     &painter{ctx: s.ctx},
		in:    in,
		g:     in.Geometry,
		fonts: in.Assets.Fonts,
		w:     float64(s.canvas.Width),
		h:     float64(s.canvas.Height),
	}

	f.background()
	f.veils()
	if f.fonts != nil {
		f.priceBadge()
		f.subtitleBadge()
		f.titles()
		f.chips()
		f.cta()
	}
	f.logo()
	f.watermark()

	if f.p.err != nil {
		return fmt.Errorf("render frame %d: %w", in.FrameIndex, f.p.err)
	}
	return nil
}

// frame is the state of one Render call
type frame struct {
	r     *Renderer
	s     *Surface
	p     *painter
	in    Input
	g     *geometry.Geometry
	fonts *assets.Fonts
	w, h  float64
}

func (f *frame) primary() gg.RGBA {
	return brandColor(f.in.Brand.PrimaryColor, fallback)
}

// drawAsset paints a prepared copy of an asset and propagates its taint.
func (f *frame) drawAsset(a *assets.Image, buf *gg.ImageBuf, opts gg.DrawImageOptions) {
	f.s.ctx.DrawImageEx(buf, opts)
	if a.Tainted {
		f.s.markTainted(a.Ref)
	}
}

func (f *frame) background() {
	if f.in.Summary {
		f.summaryBackground()
		return
	}
	photo := f.in.Assets.Photo(f.in.FrameIndex)
	if !f.in.Style.Layers.Photo || photo == nil {
		f.p.fillBox(0, 0, f.w, f.h, 0, f.primary())
		return
	}
	w, h := int(f.w), int(f.h)
	buf := f.r.cached(cacheKey{img: photo, w: w, h: h, kind: "cover"}, func() image.Image {
		return imaging.Fill(photo.Img, w, h, imaging.Center, imaging.Lanczos)
	})
	f.drawAsset(photo, buf, gg.DrawImageOptions{})
}

func (f *frame) summaryBackground() {
	photos := f.in.Assets.Photos
	mode := f.in.Style.SummaryBackground
	if !f.in.Style.Layers.Photo || len(photos) == 0 {
		mode = model.SummarySolid
	}

	w, h := int(f.w), int(f.h)
	switch mode {
	case model.SummaryBlur:
		photo := photos[0]
		buf := f.r.cached(cacheKey{img: photo, w: w, h: h, kind: "blur", arg: summaryBlurSigma}, func() image.Image {
			return imaging.Blur(imaging.Fill(photo.Img, w, h, imaging.Center, imaging.Linear), summaryBlurSigma)
		})
		f.drawAsset(photo, buf, gg.DrawImageOptions{})
		f.p.fillBox(0, 0, f.w, f.h, 0, gg.RGBA{A: 0.35})
	case model.SummaryMosaic:
		cols := int(math.Ceil(math.Sqrt(float64(len(photos)))))
		rows := (len(photos) + cols - 1) / cols
		for i, photo := range photos {
			col, row := i%cols, i/cols
			x0, x1 := col*w/cols, (col+1)*w/cols
			y0, y1 := row*h/rows, (row+1)*h/rows
			// The last row stretches across the columns it leaves empty.
			if row == rows-1 && i == len(photos)-1 {
				x1 = w
			}
			tw, th := x1-x0, y1-y0
			buf := f.r.cached(cacheKey{img: photo, w: tw, h: th, kind: "tile"}, func() image.Image {
				return imaging.Fill(photo.Img, tw, th, imaging.Center, imaging.Linear)
			})
			f.drawAsset(photo, buf, gg.DrawImageOptions{X: float64(x0), Y: float64(y0)})
		}
		f.p.fillBox(0, 0, f.w, f.h, 0, gg.RGBA{A: 0.45})
	default:
		f.p.fillBox(0, 0, f.w, f.h, 0, f.primary())
	}
}

func (f *frame) veils() {
	for _, v := range f.g.Veils {
		if v.FromAlpha == 0 && v.ToAlpha == 0 {
			continue
		}
		brush := gg.NewLinearGradientBrush(0, v.Y0, 0, v.Y1).
			AddColorStop(0, gg.RGBA{A: v.FromAlpha}).
			AddColorStop(1, gg.RGBA{A: v.ToAlpha})
		f.s.ctx.SetFillBrush(brush)
		f.s.ctx.DrawRectangle(0, v.Y0, f.w, v.Y1-v.Y0)
		f.p.fill()
	}
}

func (f *frame) priceBadge() {
	if !f.in.Style.Layers.Price {
		return
	}
	l := f.in.Listing

	var paragraphs []string
	if l.Closed != nil {
		paragraphs = append(paragraphs, ClosedLabel(l.Closed))
		if price := f.r.FormatPrice(string(l.Closed.ClosedPrice)); price != "" {
			paragraphs = append(paragraphs, price)
		}
	} else if price := f.r.FormatPrice(string(l.ActivePrice())); price != "" {
		if l.Modality == model.ModalityRent {
			price += " / month"
		}
		paragraphs = append(paragraphs, price)
	}
	if len(paragraphs) == 0 {
		return
	}
	f.badge(paragraphs, f.g.PriceBottom, true, f.primary())
}

func (f *frame) subtitleBadge() {
	if !f.in.Style.Layers.Badge {
		return
	}
	text := f.in.Listing.Subtitle(f.in.FrameIndex)
	if f.in.Summary {
		text = f.in.Brand.Name
	}
	if text == "" {
		return
	}
	f.badge([]string{text}, f.g.SubtitleTop, false, gg.RGBA{A: 0.55})
}

// badge draws wrapped paragraphs in a box anchored at y. The box grows
// upward from y when up is set, downward otherwise.
func (f *frame) badge(paragraphs []string, y float64, up bool, fill gg.RGBA) {
	b := f.g.Badge
	face := f.fonts.Face(true, b.FontSize)

	var lines []string
	for _, p := range paragraphs {
		lines = append(lines, WrapText(face, p, f.g.MaxTextWidth)...)
	}
	if len(lines) == 0 {
		return
	}
	widest := 0.0
	for _, line := range lines {
		widest = math.Max(widest, face.Advance(line))
	}

	lineH := b.FontSize * b.LineSpacing
	boxW := widest + 2*b.PaddingX
	boxH := float64(len(lines))*lineH + 2*b.PaddingY
	x := f.g.Margin
	if up {
		y -= boxH
	}
	r := b.CornerRadius
	if r < 0 {
		r = boxH / 2
	}

	f.p.shadow(x, y, boxW, boxH, r, b.Shadow)
	f.p.fillBox(x, y, boxW, boxH, r, fill)

	m := face.Metrics()
	f.s.ctx.SetFont(face)
	f.s.ctx.SetFillBrush(gg.Solid(white))
	for i, line := range lines {
		baseline := y + b.PaddingY + float64(i)*lineH + (lineH+m.Ascent-m.Descent)/2
		f.s.ctx.DrawString(line, x+b.PaddingX, baseline)
	}
}

func (f *frame) titles() {
	t := f.g.Text
	f.s.ctx.SetFont(f.fonts.Face(true, t.TitleSize))
	f.p.shadowedText(Title(f.in.Listing), f.g.Margin, f.g.TitleBaseline, t.Shadow, white)

	if loc := f.in.Listing.Location; loc != "" {
		f.s.ctx.SetFont(f.fonts.Face(false, t.LocationSize))
		f.p.shadowedText(loc, f.g.Margin, f.g.LocationBaseline, t.Shadow, white)
	}
}

// Chip is one feature bubble, e.g. "3" over "beds"
type Chip struct {
	Value string
	Label string
}

// Chips lists the feature chips of a listing, left to right. Absent
// attributes get no chip.
func (r *Renderer) Chips(l *model.ListingData) []Chip {
	var out []Chip
	if l.Rooms > 0 {
		out = append(out, Chip{strconv.Itoa(l.Rooms), "beds"})
	}
	if l.Baths > 0 {
		out = append(out, Chip{strconv.Itoa(l.Baths), "baths"})
	}
	if l.Parking > 0 {
		out = append(out, Chip{strconv.Itoa(l.Parking), "parking"})
	}
	if l.Area > 0 {
		out = append(out, Chip{r.printer.Sprintf("%d", int64(math.Round(l.Area))), "m²"})
	}
	return out
}

func (f *frame) chips() {
	if !f.in.Style.Layers.Icons {
		return
	}
	c := f.g.Chips
	valueFace := f.fonts.Face(true, c.FontSize)
	labelFace := f.fonts.Face(false, c.FontSize*0.6)
	accent := f.primary()

	x := f.g.Margin
	for _, ch := range f.r.Chips(f.in.Listing) {
		cx, cy := x+c.Diameter/2, f.g.ChipsTop+c.Diameter/2

		f.s.ctx.SetFillBrush(gg.Solid(gg.RGBA{A: 0.25}))
		f.s.ctx.DrawCircle(cx, cy+3, c.Diameter/2)
		f.p.fill()
		f.s.ctx.SetFillBrush(gg.Solid(withAlpha(white, 0.92)))
		f.s.ctx.DrawCircle(cx, cy, c.Diameter/2)
		f.p.fill()

		f.s.ctx.SetFont(valueFace)
		f.s.ctx.SetFillBrush(gg.Solid(accent))
		f.s.ctx.DrawString(ch.Value, cx-valueFace.Advance(ch.Value)/2, cy+c.FontSize*0.15)

		f.s.ctx.SetFont(labelFace)
		f.s.ctx.SetFillBrush(gg.Solid(ink))
		f.s.ctx.DrawString(ch.Label, cx-labelFace.Advance(ch.Label)/2, cy+c.FontSize*0.15+c.FontSize*0.75)

		x += c.Diameter + c.Gap
	}
}

func (f *frame) cta() {
	if !f.in.Style.Layers.CTA {
		return
	}
	text := CTA(f.in.Brand)
	if text == "" {
		return
	}
	f.s.ctx.SetFont(f.fonts.Face(true, f.g.Text.CTASize))
	f.p.shadowedText(text, f.g.Margin, f.g.CTABaseline, f.g.Text.Shadow, brandColor(f.in.Brand.SecondaryColor, white))
}

func (f *frame) logo() {
	logo := f.in.Assets.Logo
	if !f.in.Style.Layers.Logo || logo == nil {
		return
	}
	lg := f.g.Logo

	progress := lg.EntranceProgress(f.in.FrameIndex, f.in.Elapsed)
	opacity := lg.Opacity
	scale, dy := 1.0, 0.0
	switch lg.Entrance {
	case model.EntranceFade:
		opacity *= progress
	case model.EntranceZoom:
		opacity *= progress
		scale = 0.6 + 0.4*progress
	case model.EntranceSlide:
		opacity *= progress
		dy = (1 - progress) * lg.Size * 0.75
	}

	t := f.in.Elapsed.Seconds()
	switch lg.Animation {
	case model.AnimationPulse:
		scale *= 1 + 0.04*math.Sin(2*math.Pi*t/1.6)
	case model.AnimationFloat:
		dy -= 6 * math.Sin(2*math.Pi*t/3)
	}
	if opacity <= 0 {
		return
	}

	size := lg.Size * scale
	x := lg.X + (lg.Size-size)/2
	y := lg.Y + (lg.Size-size)/2 + dy
	radius := lg.CornerRadius * scale

	f.logoBackground(x, y, size, radius, opacity)

	px := int(math.Round(size))
	if px <= 0 {
		return
	}
	buf := f.r.cached(cacheKey{img: logo, w: px, h: px, kind: "logo", arg: radius}, func() image.Image {
		return shapedImage(logo.Img, px, px, radius)
	})
	f.drawAsset(logo, buf, gg.DrawImageOptions{X: x, Y: y, Opacity: opacity})
}

func (f *frame) logoBackground(x, y, size, radius, opacity float64) {
	bg := f.g.Logo.Background
	if !bg.Visible() {
		return
	}
	pad := bg.Padding
	bx, by, bw := x-pad, y-pad, size+2*pad
	br := radius + pad
	switch f.g.Logo.Shape {
	case model.ShapeCircle:
		br = bw / 2
	case model.ShapeSquare:
		br = 0
	}

	switch bg.Kind {
	case model.BackgroundFrosted:
		f.frostedBackdrop(bx, by, bw, br, opacity)
		f.p.fillBox(bx, by, bw, bw, br, straight(bg.Fill, opacity))
		f.s.ctx.SetFillBrush(gg.Solid(straight(bg.Border, opacity)))
		f.s.ctx.SetLineWidth(2)
		f.p.box(bx, by, bw, bw, br)
		f.p.stroke()
	case model.BackgroundGlow:
		const rings = 4
		for i := rings; i >= 1; i-- {
			grow := bg.Glow * float64(i) / rings
			a := 0.25 * (1 - float64(i)/(rings+1))
			f.p.fillBox(bx-grow, by-grow, bw+2*grow, bw+2*grow, br+grow, straight(bg.Fill, a*opacity))
		}
		f.p.fillBox(bx, by, bw, bw, br, straight(bg.Fill, opacity))
	case model.BackgroundElevated:
		sh := bg.Shadow
		sh.Color.A = uint8(float64(sh.Color.A) * opacity)
		f.p.shadow(bx, by, bw, bw, br, sh)
		f.p.fillBox(bx, by, bw, bw, br, straight(bg.Fill, opacity))
	case model.BackgroundHolographic, model.BackgroundIridescent:
		brush := gg.NewLinearGradientBrush(bx, by, bx+bw, by+bw)
		for i, c := range bg.Stops {
			brush = brush.AddColorStop(float64(i)/float64(len(bg.Stops)-1), straight(c, opacity))
		}
		f.s.ctx.SetFillBrush(brush)
		f.p.box(bx, by, bw, bw, br)
		f.p.fill()
		f.s.ctx.SetFillBrush(gg.Solid(withAlpha(white, 0.6*opacity)))
		f.s.ctx.SetLineWidth(1.5)
		f.p.box(bx, by, bw, bw, br)
		f.p.stroke()
	}
}

// frostedBackdrop blurs the pixels already under the logo box.
func (f *frame) frostedBackdrop(x, y, side, r, opacity float64) {
	rect := image.Rect(int(x), int(y), int(math.Ceil(x+side)), int(math.Ceil(y+side))).
		Intersect(image.Rect(0, 0, int(f.w), int(f.h)))
	if rect.Empty() {
		return
	}
	region := imaging.Blur(imaging.Crop(f.s.ctx.Image(), rect), 8)
	f.s.ctx.DrawImageEx(gg.ImageBufFromImage(roundMask(region, r)), gg.DrawImageOptions{
		X:       float64(rect.Min.X),
		Y:       float64(rect.Min.Y),
		Opacity: opacity,
	})
}

func (f *frame) watermark() {
	wm := f.in.Assets.Watermark
	if wm == nil {
		return
	}
	box := f.g.Watermark
	px := int(box.Size)
	buf := f.r.cached(cacheKey{img: wm, w: px, h: px, kind: "fit"}, func() image.Image {
		return imaging.Fit(wm.Img, px, px, imaging.Lanczos)
	})
	f.drawAsset(wm, buf, gg.DrawImageOptions{X: box.X, Y: box.Y, Opacity: box.Opacity})
}

// cached returns a prepared copy of an asset, building it on first use.
func (r *Renderer) cached(key cacheKey, build func() image.Image) *gg.ImageBuf {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buf, ok := r.cache[key]; ok {
		return buf
	}
	if len(r.cache) >= maxCachedImages {
		clear(r.cache)
	}
	buf := gg.ImageBufFromImage(build())
	r.cache[key] = buf
	return buf
}
