package video

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
)

// HeadlessDisplay has no screen; fullscreen is a no-op.
type HeadlessDisplay struct{}

func (HeadlessDisplay) EnterFullscreen(context.Context) error { return nil }
func (HeadlessDisplay) ExitFullscreen() error { return nil }

// HeadlessSource opens streams that end only when released.
type HeadlessSource struct{}

func (HeadlessSource) Open(ctx context.Context) (Stream, error) {
	return &headlessStream{ended: make(chan struct{})}, nil
}

type headlessStream struct {
	ended chan struct{}
	once  sync.Once
}

func (s *headlessStream) Show(image.Image) error { return nil }
func (s *headlessStream) Ended() <-chan struct{} { return s.ended }

func (s *headlessStream) Release() error {
	s.once.Do(func() { close(s.ended) })
	return nil
}

// Piper starts ffmpeg with a writable stdin
type Piper interface {
	Pipe(ctx context.Context, args []string) (io.WriteCloser, func() error, error)
	Available() bool
}

// FFmpegRecorder streams PNG frames into ffmpeg over image2pipe.
type FFmpegRecorder struct {
	FFmpeg Piper
}

var ffmpegCodecs = map[string][]string{
	"vp9":  {"-c:v", "libvpx-vp9", "-row-mt", "1", "-deadline", "realtime"},
	"vp8":  {"-c:v", "libvpx", "-deadline", "realtime"},
	"h264": {"-c:v", "libx264", "-preset", "veryfast", "-movflags", "+faststart"},
}

func (r *FFmpegRecorder) Supports(c Codec) bool {
	if r.FFmpeg == nil || !r.FFmpeg.Available() {
		return false
	}
	_, ok := ffmpegCodecs[c.Name]
	return ok
}

func (r *FFmpegRecorder) Start(ctx context.Context, opts RecordOptions) (Recording, error) {
	codecArgs, ok := ffmpegCodecs[opts.Codec.Name]
	if !ok {
		return nil, fmt.Errorf("unsupported codec %s", opts.Codec.Name)
	}
	f, err := os.CreateTemp("", "listing-capture-*."+opts.Codec.Container.Ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	f.Close()

	args := []string{
		"-y",
		"-f", "image2pipe",
		"-framerate", strconv.Itoa(opts.FPS),
		"-c:v", "png",
		"-i", "-",
	}
	args = append(args, codecArgs...)
	args = append(args,
		"-b:v", strconv.Itoa(opts.Bitrate),
		"-pix_fmt", "yuv420p",
		path,
	)

	stdin, wait, err := r.FFmpeg.Pipe(ctx, args)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return &ffmpegRecording{stdin: stdin, wait: wait, path: path}, nil
}

type ffmpegRecording struct {
	stdin   io.WriteCloser
	wait    func() error
	path    string
	stopped bool
	once    sync.Once
}

func (r *ffmpegRecording) AddFrame(img image.Image) error {
	if err := png.Encode(r.stdin, img); err != nil {
		return fmt.Errorf("failed to write frame to ffmpeg: %w", err)
	}
	return nil
}

func (r *ffmpegRecording) Stop(w io.Writer) error {
	r.stopped = true
	if err := r.stdin.Close(); err != nil {
		return err
	}
	if err := r.wait(); err != nil {
		return err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (r *ffmpegRecording) Abort() {
	r.once.Do(func() {
		if !r.stopped {
			r.stdin.Close()
			if err := r.wait(); err != nil {
				log.Printf("[LiveCapture] Recorder exited: %v", err)
			}
		}
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			log.Printf("[LiveCapture] Failed to remove %s: %v", r.path, err)
		}
	})
}
