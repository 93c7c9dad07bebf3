package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/listingcast/api/internal/config"
)

// ErrFFmpegUnavailable is returned when no ffmpeg binary could be located.
var ErrFFmpegUnavailable = errors.New("ffmpeg not available")

// FFmpegClient runs ffmpeg and ffprobe processes
type FFmpegClient struct {
	ffmpegPath string
	probePath  string
	timeout    time.Duration
}

// LocateBinary finds name using the configured path, then PATH, then the
// usual install locations.
func LocateBinary(configured, name string) (string, bool) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, true
		}
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, true
	}
	for _, dir := range []string{"/usr/bin", "/usr/local/bin", "/opt/homebrew/bin", "/opt/local/bin"} {
		path := dir + "/" + name
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// NewFFmpegClient creates a new ffmpeg client. A missing binary is not an
// error; callers check Available and fall back.
func NewFFmpegClient(cfg *config.FFmpegConfig) *FFmpegClient {
	c := &FFmpegClient{timeout: time.Duration(cfg.Timeout) * time.Second}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Minute
	}
	if path, ok := LocateBinary(cfg.Path, "ffmpeg"); ok {
		c.ffmpegPath = path
		log.Printf("[FFmpeg] ffmpeg found at: %s", path)
	} else {
		log.Printf("[FFmpeg] ffmpeg not found, video encoding will use the MJPEG fallback")
	}
	if path, ok := LocateBinary(cfg.ProbePath, "ffprobe"); ok {
		c.probePath = path
	}
	return c
}

// Available reports whether ffmpeg can be run.
func (c *FFmpegClient) Available() bool {
	return c.ffmpegPath != ""
}

// CanProbe reports whether ffprobe can be run.
func (c *FFmpegClient) CanProbe() bool {
	return c.probePath != ""
}

// Run executes ffmpeg with args, feeding stdin when non-nil, and returns its
// stdout. The process is killed when ctx ends or the timeout passes.
func (c *FFmpegClient) Run(ctx context.Context, args []string, stdin io.Reader) ([]byte, error) {
	if !c.Available() {
		return nil, ErrFFmpegUnavailable
	}
	return c.exec(ctx, c.ffmpegPath, args, stdin)
}

// Probe returns the duration of a media file or URL.
func (c *FFmpegClient) Probe(ctx context.Context, input string) (time.Duration, error) {
	if !c.CanProbe() {
		return 0, fmt.Errorf("ffprobe not available")
	}
	out, err := c.exec(ctx, c.probePath, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	}, nil)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Pipe starts ffmpeg with a writable stdin. Closing the returned writer and
// calling wait finishes the process.
func (c *FFmpegClient) Pipe(ctx context.Context, args []string) (io.WriteCloser, func() error, error) {
	if !c.Available() {
		return nil, nil, ErrFFmpegUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}

	log.Printf("[FFmpeg] Starting: %s %v", c.ffmpegPath, args)
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	wait := func() error {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Printf("[FFmpeg] stderr: %s", stderr.String())
			return fmt.Errorf("ffmpeg failed: %w", err)
		}
		return nil
	}
	return stdin, wait, nil
}

func (c *FFmpegClient) exec(ctx context.Context, bin string, args []string, stdin io.Reader) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("[FFmpeg] %s timed out after %s", bin, c.timeout)
			return nil, fmt.Errorf("%s timed out after %s", bin, c.timeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("[FFmpeg] stderr: %s", stderr.String())
		return nil, fmt.Errorf("%s failed: %w", bin, err)
	}
	return stdout.Bytes(), nil
}
