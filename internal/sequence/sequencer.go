// Package sequence drives the renderer over the frames of a listing, one
// frame at a time on a single shared surface.
package sequence

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
)

// Input describes the listing being sequenced
type Input struct {
	Listing  *model.ListingData
	Brand    *model.BrandConfig
	Style    model.StyleConfig
	Geometry *geometry.Geometry
	Assets   *assets.Set
}

// Frame is handed to the frame callback while its pixels are on the surface.
type Frame struct {
	Index   int
	Total   int
	Summary bool
	Elapsed time.Duration
	// Hold is the number of ticks a sampled frame is shown for. It is 1 for
	// ForEachFrame.
	Hold    int
	Surface *render.Surface
}

// FrameFunc consumes one rendered frame. It must not retain the surface.
type FrameFunc func(ctx context.Context, f Frame) error

// Sequencer renders frames strictly in order
type Sequencer struct {
	renderer *render.Renderer
	surface  *render.Surface

	// Delay runs after each frame is painted and before it is handed on.
	Delay func(ctx context.Context, index int) error
}

func New(renderer *render.Renderer, surface *render.Surface) *Sequencer {
	return &Sequencer{renderer: renderer, surface: surface}
}

// FrameCount is the number of photo frames plus the summary frame when enabled.
func FrameCount(in Input) int {
	n := len(in.Listing.Photos)
	if in.Assets != nil && len(in.Assets.Photos) > n {
		n = len(in.Assets.Photos)
	}
	if in.Style.Summary {
		n++
	}
	return n
}

// ForEachFrame renders every frame in its settled state and calls onFrame
// after each. The context is checked before every frame.
func (s *Sequencer) ForEachFrame(ctx context.Context, in Input, onFrame FrameFunc) error {
	total := FrameCount(in)
	settled := in.Geometry.Logo.EntranceFor
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := Frame{Index: i, Total: total, Summary: s.isSummary(in, i), Elapsed: settled, Hold: 1}
		if err := s.emit(ctx, in, f, onFrame); err != nil {
			return err
		}
	}
	return nil
}

// SampleOptions controls SampleFrames
type SampleOptions struct {
	FPS           int
	SlideDuration time.Duration
}

// SampleFrames renders the sequence as a timeline at opts.FPS. The first
// frame's logo entrance is sampled every tick; everything else is emitted
// once with a Hold covering the rest of its slide.
func (s *Sequencer) SampleFrames(ctx context.Context, in Input, opts SampleOptions, onFrame FrameFunc) error {
	if opts.FPS <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", opts.FPS)
	}
	tick := time.Second / time.Duration(opts.FPS)
	slideTicks := int(math.Max(1, math.Round(opts.SlideDuration.Seconds()*float64(opts.FPS))))

	logo := in.Geometry.Logo
	animated := in.Style.Layers.Logo && logo.Entrance != model.EntranceNone && logo.EntranceFor > 0
	entranceTicks := 0
	if animated {
		entranceTicks = int(math.Ceil(logo.EntranceFor.Seconds() * float64(opts.FPS)))
		if entranceTicks >= slideTicks {
			entranceTicks = slideTicks - 1
		}
	}

	total := FrameCount(in)
	for i := 0; i < total; i++ {
		hold := slideTicks
		if i == 0 {
			for k := 0; k < entranceTicks; k++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				f := Frame{Index: 0, Total: total, Summary: s.isSummary(in, 0), Elapsed: time.Duration(k) * tick, Hold: 1}
				if err := s.emit(ctx, in, f, onFrame); err != nil {
					return err
				}
			}
			hold -= entranceTicks
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		f := Frame{Index: i, Total: total, Summary: s.isSummary(in, i), Elapsed: logo.EntranceFor, Hold: hold}
		if err := s.emit(ctx, in, f, onFrame); err != nil {
			return err
		}
	}
	return nil
}

// RenderFrame paints a single frame and hands it to onFrame.
func (s *Sequencer) RenderFrame(ctx context.Context, in Input, index int, elapsed time.Duration, onFrame FrameFunc) error {
	total := FrameCount(in)
	if index < 0 || index >= total {
		return fmt.Errorf("frame %d out of range [0,%d)", index, total)
	}
	f := Frame{Index: index, Total: total, Summary: s.isSummary(in, index), Elapsed: elapsed, Hold: 1}
	return s.emit(ctx, in, f, onFrame)
}

func (s *Sequencer) isSummary(in Input, i int) bool {
	return in.Style.Summary && i == FrameCount(in)-1
}

func (s *Sequencer) emit(ctx context.Context, in Input, f Frame, onFrame FrameFunc) error {
	tok := s.surface.Issue()
	defer s.surface.Invalidate(tok)

	err := s.renderer.Render(s.surface, tok, render.Input{
		Listing:    in.Listing,
		Brand:      in.Brand,
		Style:      in.Style,
		Geometry:   in.Geometry,
		Assets:     in.Assets,
		FrameIndex: f.Index,
		Elapsed:    f.Elapsed,
		Summary:    f.Summary,
	})
	if err != nil {
		return err
	}

	if s.Delay != nil {
		if err := s.Delay(ctx, f.Index); err != nil {
			return err
		}
	}

	f.Surface = s.surface
	return onFrame(ctx, f)
}
