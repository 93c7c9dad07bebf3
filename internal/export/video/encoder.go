package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/icza/mjpeg"
)

// Runner runs ffmpeg to completion
type Runner interface {
	Run(ctx context.Context, args []string, stdin io.Reader) ([]byte, error)
}

// FFmpegEncoder writes frames as PNG files and encodes them with libx264.
type FFmpegEncoder struct {
	Runner Runner
	CRF    int
	FPS    int
}

func NewFFmpegEncoder(r Runner) *FFmpegEncoder {
	return &FFmpegEncoder{Runner: r, CRF: 20, FPS: 30}
}

func (e *FFmpegEncoder) Container() Container { return MP4 }

func (e *FFmpegEncoder) Close() error { return nil }

func (e *FFmpegEncoder) Begin(ctx context.Context, hold time.Duration) (Session, error) {
	dir, err := os.MkdirTemp("", "listing-video-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &ffmpegSession{enc: e, dir: dir, hold: hold}, nil
}

type ffmpegSession struct {
	enc    *FFmpegEncoder
	dir    string
	hold   time.Duration
	frames int
	once   sync.Once
}

func (s *ffmpegSession) AddFrame(img image.Image) error {
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%05d.png", s.frames))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode frame %d: %w", s.frames, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.frames++
	return nil
}

func (s *ffmpegSession) Finish(ctx context.Context, w io.Writer) error {
	if s.frames == 0 {
		return fmt.Errorf("no frames to encode")
	}
	out := filepath.Join(s.dir, "output.mp4")
	// One input frame per hold period, resampled to a constant output rate.
	inputRate := fmt.Sprintf("1000/%d", max(s.hold.Milliseconds(), 1))
	args := []string{
		"-y",
		"-framerate", inputRate,
		"-i", filepath.Join(s.dir, "frame_%05d.png"),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(s.enc.CRF),
		"-r", strconv.Itoa(s.enc.FPS),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	}
	if _, err := s.enc.Runner.Run(ctx, args, nil); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}

	f, err := os.Open(out)
	if err != nil {
		return fmt.Errorf("failed to open encoded video: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read encoded video: %w", err)
	}
	return nil
}

func (s *ffmpegSession) Abort() {
	s.once.Do(func() {
		if err := os.RemoveAll(s.dir); err != nil {
			log.Printf("[VideoExport] Failed to remove temp dir %s: %v", s.dir, err)
		}
	})
}

// MJPEGEncoder writes Motion JPEG AVI files. It needs no external tools.
type MJPEGEncoder struct {
	Quality int
}

func NewMJPEGEncoder() *MJPEGEncoder {
	return &MJPEGEncoder{Quality: 90}
}

func (e *MJPEGEncoder) Container() Container { return AVI }

func (e *MJPEGEncoder) Close() error { return nil }

func (e *MJPEGEncoder) Begin(ctx context.Context, hold time.Duration) (Session, error) {
	f, err := os.CreateTemp("", "listing-video-*.avi")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	f.Close()

	return &mjpegSession{
		quality: e.Quality,
		path:    path,
		repeat:  max(int(math.Round(hold.Seconds())), 1),
	}, nil
}

// mjpegSession runs at 1 fps and repeats each still once per held second.
type mjpegSession struct {
	quality int
	path    string
	repeat  int
	aw      mjpeg.AviWriter
	size    image.Point
	closed  bool
	once    sync.Once
}

func (s *mjpegSession) AddFrame(img image.Image) error {
	b := img.Bounds()
	if s.aw == nil {
		aw, err := mjpeg.New(s.path, int32(b.Dx()), int32(b.Dy()), 1)
		if err != nil {
			return fmt.Errorf("failed to create MJPEG writer: %w", err)
		}
		s.aw = aw
		s.size = b.Size()
	}
	if b.Size() != s.size {
		return fmt.Errorf("frame size %v differs from %v", b.Size(), s.size)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	for i := 0; i < s.repeat; i++ {
		if err := s.aw.AddFrame(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to add frame: %w", err)
		}
	}
	return nil
}

func (s *mjpegSession) Finish(ctx context.Context, w io.Writer) error {
	if s.aw == nil {
		return fmt.Errorf("no frames to encode")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.closed = true
	if err := s.aw.Close(); err != nil {
		return fmt.Errorf("failed to finalize AVI: %w", err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open AVI: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (s *mjpegSession) Abort() {
	s.once.Do(func() {
		if s.aw != nil && !s.closed {
			if err := s.aw.Close(); err != nil {
				log.Printf("[VideoExport] Failed to close MJPEG writer: %v", err)
			}
		}
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			log.Printf("[VideoExport] Failed to remove %s: %v", s.path, err)
		}
	})
}

// FFmpeg is satisfied by the ffmpeg client
type FFmpeg interface {
	Runner
	Available() bool
}

// NewEncoderFactory prefers ffmpeg and falls back to MJPEG when it is missing.
func NewEncoderFactory(ff FFmpeg) func() (Encoder, error) {
	return func() (Encoder, error) {
		if ff != nil && ff.Available() {
			return NewFFmpegEncoder(ff), nil
		}
		log.Printf("[VideoExport] FFmpeg not available, using MJPEG fallback")
		return NewMJPEGEncoder(), nil
	}
}
