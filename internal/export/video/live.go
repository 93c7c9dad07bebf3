package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/sequence"
)

// Bitrate is the live recording target in bits per second.
const Bitrate = 12_000_000

// Codec is a recorder codec and the container it is muxed into
type Codec struct {
	Name      string
	Container Container
}

var (
	CodecVP9  = Codec{Name: "vp9", Container: WebM}
	CodecVP8  = Codec{Name: "vp8", Container: WebM}
	CodecH264 = Codec{Name: "h264", Container: MP4}
)

// CodecPreference is tried in order against the recorder.
var CodecPreference = []Codec{CodecVP9, CodecVP8, CodecH264}

// Display presents frames full screen while they are captured.
type Display interface {
	EnterFullscreen(ctx context.Context) error
	ExitFullscreen() error
}

// Stream is an open capture of the display. Ended is closed when the
// capture stops outside the exporter's control.
type Stream interface {
	Show(img image.Image) error
	Ended() <-chan struct{}
	Release() error
}

// CaptureSource opens capture streams
type CaptureSource interface {
	Open(ctx context.Context) (Stream, error)
}

// RecordOptions configures a recording
type RecordOptions struct {
	Codec   Codec
	Bitrate int
	FPS     int
}

// Recorder encodes captured frames
type Recorder interface {
	Supports(c Codec) bool
	Start(ctx context.Context, opts RecordOptions) (Recording, error)
}

// Recording is one running recorder. Stop flushes the file to w.
type Recording interface {
	AddFrame(img image.Image) error
	Stop(w io.Writer) error
	Abort()
}

// NegotiateCodec returns the first preferred codec the recorder supports.
func NegotiateCodec(r Recorder) (Codec, error) {
	tried := make([]string, 0, len(CodecPreference))
	for _, c := range CodecPreference {
		if r.Supports(c) {
			return c, nil
		}
		tried = append(tried, c.Name+"/"+c.Container.Ext)
	}
	return Codec{}, &exporterr.CodecUnsupportedError{Tried: tried}
}

// LiveCapture records the animated sequence in real time.
type LiveCapture struct {
	Display       Display
	Source        CaptureSource
	Recorder      Recorder
	Sequencer     *sequence.Sequencer
	FPS           int
	SlideDuration time.Duration
	// Limiter paces frames. Nil paces at FPS.
	Limiter *rate.Limiter
}

// Export records in to w. A stream that ends early, or a cancelled context,
// yields CaptureCancelledError.
func (l *LiveCapture) Export(ctx context.Context, in sequence.Input, w io.Writer, progress model.ProgressFunc) (Container, error) {
	if progress == nil {
		progress = func(model.Progress) {}
	}
	fps := l.FPS
	if fps <= 0 {
		fps = 30
	}
	slide := l.SlideDuration
	if slide <= 0 {
		slide = DefaultHold
	}
	total := sequence.FrameCount(in)

	progress(model.Progress{Stage: model.StagePreparing, Percent: 0, Message: "Preparing capture", TotalFrames: total})

	codec, err := NegotiateCodec(l.Recorder)
	if err != nil {
		return Container{}, err
	}

	if err := l.Display.EnterFullscreen(ctx); err != nil {
		return Container{}, fmt.Errorf("enter fullscreen: %w", err)
	}
	defer func() {
		if err := l.Display.ExitFullscreen(); err != nil {
			log.Printf("[LiveCapture] Failed to exit fullscreen: %v", err)
		}
	}()

	stream, err := l.Source.Open(ctx)
	if err != nil {
		return Container{}, fmt.Errorf("open capture stream: %w", err)
	}
	defer func() {
		if err := stream.Release(); err != nil {
			log.Printf("[LiveCapture] Failed to release stream: %v", err)
		}
	}()

	rec, err := l.Recorder.Start(ctx, RecordOptions{Codec: codec, Bitrate: Bitrate, FPS: fps})
	if err != nil {
		return Container{}, fmt.Errorf("start recorder: %w", err)
	}
	defer rec.Abort()

	captureCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ended atomic.Bool
	go func() {
		select {
		case <-stream.Ended():
			ended.Store(true)
			cancel()
		case <-captureCtx.Done():
		}
	}()

	limiter := l.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(fps), 1)
	}

	done := 0
	entrance := in.Geometry.Logo.EntranceFor
	err = l.Sequencer.SampleFrames(captureCtx, in, sequence.SampleOptions{FPS: fps, SlideDuration: slide},
		func(ctx context.Context, f sequence.Frame) error {
			img, err := f.Surface.Capture()
			if err != nil {
				return err
			}
			for k := 0; k < f.Hold; k++ {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				if err := stream.Show(img); err != nil {
					return err
				}
				if err := rec.AddFrame(img); err != nil {
					return err
				}
			}
			if f.Elapsed >= entrance {
				done++
				progress(model.Progress{
					Stage:        model.StageRecording,
					Percent:      5 + 80*done/max(total, 1),
					Message:      fmt.Sprintf("Recording frame %d of %d", done, total),
					CurrentFrame: done,
					TotalFrames:  total,
				})
			}
			return nil
		})

	select {
	case <-stream.Ended():
		ended.Store(true)
	default:
	}
	if ended.Load() {
		return Container{}, &exporterr.CaptureCancelledError{Reason: "capture stream ended"}
	}
	if ctx.Err() != nil {
		return Container{}, &exporterr.CaptureCancelledError{Reason: "export cancelled"}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Container{}, &exporterr.CaptureCancelledError{Reason: "export cancelled"}
		}
		return Container{}, err
	}

	progress(model.Progress{Stage: model.StageProcessing, Percent: 90, Message: "Finalizing recording", CurrentFrame: done, TotalFrames: total})

	var buf bytes.Buffer
	if err := rec.Stop(&buf); err != nil {
		return Container{}, fmt.Errorf("stop recorder: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return Container{}, fmt.Errorf("write recording: %w", err)
	}
	log.Printf("[LiveCapture] Recorded %d frames as %s/%s (%d bytes)", done, codec.Name, codec.Container.Ext, buf.Len())

	progress(model.Progress{Stage: model.StageComplete, Percent: 100, Message: "Video ready", CurrentFrame: done, TotalFrames: total})
	return codec.Container, nil
}
