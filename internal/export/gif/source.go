package gif

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/listingcast/api/internal/sequence"
)

// SourceFrame is one extracted frame held for Ticks ticks.
type SourceFrame struct {
	Image image.Image
	Ticks int
}

// EmitFunc receives extracted frames in order.
type EmitFunc func(SourceFrame) error

// Source supplies the frames of a GIF
type Source interface {
	// Duration estimates the source length for preset selection.
	Duration(ctx context.Context) (time.Duration, error)
	// Extract emits frames sampled at fps and reports (current, total).
	Extract(ctx context.Context, fps int, emit EmitFunc, progress func(current, total int)) error
}

// RenderedSource takes sequencer output as-is. Slides are held with tick
// counts rather than repeated frames.
type RenderedSource struct {
	Sequencer     *sequence.Sequencer
	Input         sequence.Input
	SlideDuration time.Duration
}

func (s *RenderedSource) Duration(context.Context) (time.Duration, error) {
	return time.Duration(sequence.FrameCount(s.Input)) * s.SlideDuration, nil
}

func (s *RenderedSource) Extract(ctx context.Context, fps int, emit EmitFunc, progress func(current, total int)) error {
	total := sequence.FrameCount(s.Input)
	done := 0
	return s.Sequencer.SampleFrames(ctx, s.Input, sequence.SampleOptions{FPS: fps, SlideDuration: s.SlideDuration},
		func(ctx context.Context, f sequence.Frame) error {
			img, err := f.Surface.Capture()
			if err != nil {
				return err
			}
			if err := emit(SourceFrame{Image: img, Ticks: f.Hold}); err != nil {
				return err
			}
			// Progress counts slides; entrance samples belong to the first.
			if f.Elapsed >= s.Input.Geometry.Logo.EntranceFor {
				done++
				progress(done, total)
			}
			return nil
		})
}

// Runner runs ffmpeg and ffprobe
type Runner interface {
	Run(ctx context.Context, args []string, stdin io.Reader) ([]byte, error)
	Probe(ctx context.Context, input string) (time.Duration, error)
}

// Clip is one source video with its declared duration
type Clip struct {
	URL      string
	Declared time.Duration
}

// VideoSource seeks through video clips and captures one PNG per tick.
type VideoSource struct {
	Runner Runner
	Clips  []Clip
	// MaxWidth bounds extracted frames; 0 keeps the source size.
	MaxWidth int

	durations []time.Duration
}

func (s *VideoSource) Duration(ctx context.Context) (time.Duration, error) {
	if err := s.probe(ctx); err != nil {
		return 0, err
	}
	var total time.Duration
	for _, d := range s.durations {
		total += d
	}
	return total, nil
}

// probe measures each clip once, falling back to the declared duration.
func (s *VideoSource) probe(ctx context.Context) error {
	if s.durations != nil {
		return nil
	}
	durations := make([]time.Duration, len(s.Clips))
	for i, clip := range s.Clips {
		d, err := s.Runner.Probe(ctx, clip.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if clip.Declared <= 0 {
				return fmt.Errorf("probe clip %d: %w", i, err)
			}
			log.Printf("[GIFExport] probe failed for clip %d, using declared duration: %v", i, err)
			d = clip.Declared
		}
		durations[i] = d
	}
	s.durations = durations
	return nil
}

func (s *VideoSource) Extract(ctx context.Context, fps int, emit EmitFunc, progress func(current, total int)) error {
	if err := s.probe(ctx); err != nil {
		return err
	}

	total := 0
	counts := make([]int, len(s.Clips))
	for i, d := range s.durations {
		counts[i] = int(math.Ceil(d.Seconds() * float64(fps)))
		total += counts[i]
	}

	current := 0
	for i, clip := range s.Clips {
		for k := 0; k < counts[i]; k++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			at := float64(k) / float64(fps)
			img, err := s.capture(ctx, clip.URL, at)
			if err != nil {
				return fmt.Errorf("capture clip %d at %.2fs: %w", i, at, err)
			}
			if err := emit(SourceFrame{Image: img, Ticks: 1}); err != nil {
				return err
			}
			current++
			progress(current, total)
		}
	}
	return nil
}

func (s *VideoSource) capture(ctx context.Context, url string, at float64) (image.Image, error) {
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", url,
		"-frames:v", "1",
	}
	if s.MaxWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", s.MaxWidth))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "png", "-")

	out, err := s.Runner.Run(ctx, args, nil)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(out))
}
