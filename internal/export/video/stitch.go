package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"time"

	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/sequence"
)

// DefaultHold is how long each still is shown.
const DefaultHold = 3 * time.Second

// FrameSource yields settled frames in order
type FrameSource interface {
	Len() int
	Each(ctx context.Context, yield func(img image.Image) error) error
}

// SequenceFrames captures every settled frame of a sequenced listing.
type SequenceFrames struct {
	Sequencer *sequence.Sequencer
	Input     sequence.Input
}

func (s *SequenceFrames) Len() int { return sequence.FrameCount(s.Input) }

func (s *SequenceFrames) Each(ctx context.Context, yield func(img image.Image) error) error {
	return s.Sequencer.ForEachFrame(ctx, s.Input, func(ctx context.Context, f sequence.Frame) error {
		img, err := f.Surface.Capture()
		if err != nil {
			return err
		}
		return yield(img)
	})
}

// Stitcher encodes stills into a video through the slot's encoder.
type Stitcher struct {
	Slot *Slot
	Hold time.Duration
}

// Export holds each frame for s.Hold and writes the encoded file to w.
func (s *Stitcher) Export(ctx context.Context, frames FrameSource, w io.Writer, progress model.ProgressFunc) (Container, error) {
	if progress == nil {
		progress = func(model.Progress) {}
	}
	hold := s.Hold
	if hold <= 0 {
		hold = DefaultHold
	}

	h, err := s.Slot.Acquire()
	if err != nil {
		return Container{}, err
	}
	defer h.Release()
	enc := h.Encoder()

	total := frames.Len()
	progress(model.Progress{Stage: model.StagePreparing, Percent: 0, Message: "Preparing video", TotalFrames: total})

	sess, err := enc.Begin(ctx, hold)
	if err != nil {
		return Container{}, fmt.Errorf("begin encode: %w", err)
	}
	defer sess.Abort()

	current := 0
	err = frames.Each(ctx, func(img image.Image) error {
		if err := sess.AddFrame(img); err != nil {
			return err
		}
		current++
		progress(model.Progress{
			Stage:        model.StageCapturing,
			Percent:      5 + 70*current/max(total, 1),
			Message:      fmt.Sprintf("Captured frame %d of %d", current, total),
			CurrentFrame: current,
			TotalFrames:  total,
		})
		return nil
	})
	if err != nil {
		return Container{}, err
	}

	progress(model.Progress{Stage: model.StageEncoding, Percent: 80, Message: "Encoding video", CurrentFrame: current, TotalFrames: total})

	var buf bytes.Buffer
	if err := sess.Finish(ctx, &buf); err != nil {
		return Container{}, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return Container{}, fmt.Errorf("write video: %w", err)
	}
	log.Printf("[VideoExport] Stitched %d frames (%s, %d bytes)", current, enc.Container().Ext, buf.Len())

	progress(model.Progress{Stage: model.StageComplete, Percent: 100, Message: "Video ready", CurrentFrame: current, TotalFrames: total})
	return enc.Container(), nil
}
