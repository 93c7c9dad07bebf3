package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/listingcast/api/internal/export"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
	"github.com/listingcast/api/internal/sequence"
)

// PreviewService renders single frames synchronously for the editor
type PreviewService struct {
	assets   export.Preloader
	renderer *render.Renderer

	mu       sync.Mutex
	surfaces map[model.Canvas]*render.Surface
}

func NewPreviewService(assets export.Preloader, renderer *render.Renderer) *PreviewService {
	return &PreviewService{
		assets:   assets,
		renderer: renderer,
		surfaces: make(map[model.Canvas]*render.Surface),
	}
}

// RenderFrame paints one frame at the requested point of its entrance and
// writes it to w as a PNG.
func (s *PreviewService) RenderFrame(ctx context.Context, req *model.PreviewFrameRequest, w io.Writer) error {
	style := model.DefaultStyle()
	if req.Style != nil {
		style = *req.Style
	}
	if req.Summary {
		style.Summary = true
	}
	if err := req.Listing.CheckPrice(); err != nil {
		return exporterr.Invalid("listing", err.Error())
	}

	canvas, err := model.CanvasFor(style.Canvas)
	if err != nil {
		return exporterr.Unknown("canvas", style.Canvas)
	}
	geom, err := geometry.Resolve(style, canvas)
	if err != nil {
		return err
	}

	set, err := s.assets.Preload(ctx, req.Listing.Photos, req.Brand.LogoURL, true)
	if err != nil {
		return err
	}

	in := sequence.Input{
		Listing:  &req.Listing,
		Brand:    &req.Brand,
		Style:    style,
		Geometry: geom,
		Assets:   set,
	}
	if total := sequence.FrameCount(in); req.FrameIndex >= total {
		return exporterr.Invalid("frameIndex", fmt.Sprintf("frame %d does not exist", req.FrameIndex))
	}

	elapsed := time.Duration(req.Elapsed) * time.Millisecond

	// The surface has a single writer, so previews of one canvas are serialized.
	s.mu.Lock()
	defer s.mu.Unlock()

	surface, ok := s.surfaces[canvas]
	if !ok {
		surface = render.NewSurface(canvas)
		s.surfaces[canvas] = surface
	}

	seq := sequence.New(s.renderer, surface)
	return seq.RenderFrame(ctx, in, req.FrameIndex, elapsed, func(ctx context.Context, f sequence.Frame) error {
		if ref, tainted := f.Surface.Tainted(); tainted {
			return &exporterr.RenderCaptureError{Err: &exporterr.ExportSecurityError{Ref: ref}}
		}
		return f.Surface.EncodePNG(w)
	})
}

// Close releases the preview surfaces.
func (s *PreviewService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, surface := range s.surfaces {
		surface.Close()
		delete(s.surfaces, c)
	}
	return nil
}
