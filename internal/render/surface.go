package render

import (
	"errors"
	"image"
	"io"

	"github.com/gogpu/gg"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
)

// ErrStaleToken is returned when Render is called with a token that is no
// longer the surface's current one.
var ErrStaleToken = errors.New("render token is stale")

// Token grants one frame's worth of write access to a Surface.
type Token struct {
	gen uint64
}

// Surface is the single drawing target shared by an export. It has exactly
// one writer at a time, the holder of the current Token.
type Surface struct {
	ctx     *gg.Context
	canvas  model.Canvas
	gen     uint64
	active  bool
	tainted string
}

func NewSurface(canvas model.Canvas) *Surface {
	return &Surface{
		ctx:    gg.NewContext(canvas.Width, canvas.Height),
		canvas: canvas,
	}
}

// Canvas returns the surface size.
func (s *Surface) Canvas() model.Canvas {
	return s.canvas
}

// Issue invalidates any previous token and returns a new one.
func (s *Surface) Issue() Token {
	s.gen++
	s.active = true
	return Token{gen: s.gen}
}

// Invalidate retires tok. Retiring an already stale token is a no-op.
func (s *Surface) Invalidate(tok Token) {
	if tok.gen == s.gen {
		s.active = false
	}
}

func (s *Surface) check(tok Token) error {
	if !s.active || tok.gen != s.gen {
		return ErrStaleToken
	}
	return nil
}

// Tainted reports whether a cross-origin asset has been painted since the
// last full repaint, and which one.
func (s *Surface) Tainted() (string, bool) {
	return s.tainted, s.tainted != ""
}

func (s *Surface) markTainted(ref string) {
	if s.tainted == "" {
		s.tainted = ref
	}
}

// Capture returns a copy of the current pixels. A tainted surface cannot be
// read back.
func (s *Surface) Capture() (*image.RGBA, error) {
	if ref, ok := s.Tainted(); ok {
		return nil, &exporterr.ExportSecurityError{Ref: ref}
	}
	img, ok := s.ctx.Image().(*image.RGBA)
	if !ok {
		return nil, errors.New("unexpected surface pixel format")
	}
	return img, nil
}

// EncodePNG writes the surface as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	if ref, ok := s.Tainted(); ok {
		return &exporterr.ExportSecurityError{Ref: ref}
	}
	return s.ctx.EncodePNG(w)
}

// EncodeJPEG writes the surface as JPEG at quality 1-100.
func (s *Surface) EncodeJPEG(w io.Writer, quality int) error {
	if ref, ok := s.Tainted(); ok {
		return &exporterr.ExportSecurityError{Ref: ref}
	}
	return s.ctx.EncodeJPEG(w, quality)
}

// Context exposes the drawing context to post-render overlays such as the
// still-image watermark.
func (s *Surface) Context() *gg.Context {
	return s.ctx
}

// Close releases the drawing context.
func (s *Surface) Close() error {
	return s.ctx.Close()
}
