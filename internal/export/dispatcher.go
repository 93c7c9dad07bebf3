// Package export selects and runs the pipeline for an export request. A
// dispatcher runs one export at a time on a shared surface.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/export/gif"
	"github.com/listingcast/api/internal/export/still"
	"github.com/listingcast/api/internal/export/video"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/geometry"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
	"github.com/listingcast/api/internal/sequence"
)

// Kind is the pipeline that serves a request
type Kind int

const (
	KindStill Kind = iota + 1
	KindGIFRendered
	KindGIFVideo
	KindStitch
	KindLiveCapture
)

func (k Kind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindGIFRendered:
		return "gif-rendered"
	case KindGIFVideo:
		return "gif-video"
	case KindStitch:
		return "stitch"
	case KindLiveCapture:
		return "live-capture"
	}
	return "unknown"
}

func (k Kind) isVideo() bool {
	return k == KindStitch || k == KindLiveCapture
}

// Select maps a content type and format to a pipeline.
func Select(content model.ContentType, format model.ExportFormat) (Kind, error) {
	switch format {
	case model.FormatPNG, model.FormatJPEG:
		if content == model.ContentSingle || content == model.ContentCarousel {
			return KindStill, nil
		}
	case model.FormatGIF:
		switch content {
		case model.ContentCarousel:
			return KindGIFRendered, nil
		case model.ContentVideo:
			return KindGIFVideo, nil
		}
	case model.FormatMP4:
		if content == model.ContentSingle || content == model.ContentCarousel {
			return KindStitch, nil
		}
	case model.FormatWebM:
		if content == model.ContentCarousel {
			return KindLiveCapture, nil
		}
	default:
		return 0, exporterr.Unknown("format", format)
	}
	return 0, exporterr.Invalid("format", fmt.Sprintf("%s export is not available for %s content", format, content))
}

// Request is one export
type Request struct {
	Content    model.ContentType
	Format     model.ExportFormat
	Listing    *model.ListingData
	Brand      *model.BrandConfig
	Style      model.StyleConfig
	FrameIndex int
	Quality    float64
	Watermark  string
	GIFPreset  string
}

// Output describes a finished artifact
type Output struct {
	Ext         string
	ContentType string
	Frames      int
	Size        int64
	Preset      string
}

// Preloader loads the assets of a request
type Preloader interface {
	Preload(ctx context.Context, photoRefs []string, logoRef string, requireFonts bool) (*assets.Set, error)
}

// Dispatcher wires the pipelines together
type Dispatcher struct {
	Assets   Preloader
	Renderer *render.Renderer
	GIF      *gif.Pipeline
	// Clips runs ffmpeg for video sources.
	Clips gif.Runner
	Slot  *video.Slot
	Live  *video.LiveCapture

	StillHold     time.Duration
	SlideDuration time.Duration
	LiveFPS       int

	mu       sync.Mutex
	running  *Job
	surfaces map[model.Canvas]*render.Surface
}

// Job is a running export
type Job struct {
	Kind   Kind
	Format model.ExportFormat

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	progress model.Progress
	output   Output
	err      error
}

// Cancel stops the export. The sequencer stops before its next frame.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the export ends and returns its error.
func (j *Job) Wait() error {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed when the export ends.
func (j *Job) Done() <-chan struct{} { return j.done }

// Progress returns the latest progress report.
func (j *Job) Progress() model.Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Output describes the artifact once Wait returned nil.
func (j *Job) Output() Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

// Start validates req and runs it in the background. Output is buffered
// and written to w only when the pipeline succeeds.
func (d *Dispatcher) Start(ctx context.Context, req Request, w io.Writer, onProgress model.ProgressFunc) (*Job, error) {
	kind, err := Select(req.Content, req.Format)
	if err != nil {
		return nil, err
	}
	if req.Listing == nil {
		return nil, exporterr.Invalid("listing", "missing")
	}
	if kind.isVideo() && d.Slot == nil {
		return nil, exporterr.Invalid("format", "video encoding is not configured")
	}
	// The slot is shared across dispatchers; fail before loading assets.
	if kind.isVideo() && d.Slot.Busy() {
		return nil, &exporterr.EncoderBusyError{}
	}
	if req.Brand == nil {
		req.Brand = &model.BrandConfig{}
	}
	canvas, err := model.CanvasFor(req.Style.Canvas)
	if err != nil {
		return nil, exporterr.Unknown("canvas", req.Style.Canvas)
	}
	geom, err := geometry.Resolve(req.Style, canvas)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.running != nil {
		d.mu.Unlock()
		if kind.isVideo() {
			return nil, &exporterr.EncoderBusyError{}
		}
		return nil, exporterr.Invalid("", "export already running")
	}
	surface := d.surface(canvas)
	jctx, cancel := context.WithCancel(ctx)
	job := &Job{Kind: kind, Format: req.Format, cancel: cancel, done: make(chan struct{})}
	d.running = job
	d.mu.Unlock()

	report := func(p model.Progress) {
		job.mu.Lock()
		job.progress = p
		job.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}

	go func() {
		defer func() {
			cancel()
			d.mu.Lock()
			d.running = nil
			d.mu.Unlock()
			close(job.done)
		}()

		start := time.Now()
		var buf bytes.Buffer
		out, err := d.run(jctx, kind, req, geom, surface, &buf, report)
		if err == nil {
			if _, werr := w.Write(buf.Bytes()); werr != nil {
				err = fmt.Errorf("write artifact: %w", werr)
			}
			out.Size = int64(buf.Len())
		}

		job.mu.Lock()
		job.err = err
		job.output = out
		job.mu.Unlock()

		if err != nil {
			log.Printf("[Export] %s %s failed after %s: %v", kind, req.Format, time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Printf("[Export] %s %s finished in %s (%d bytes)", kind, req.Format, time.Since(start).Round(time.Millisecond), out.Size)
	}()

	return job, nil
}

// Running reports whether an export is in flight.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running != nil
}

// Close releases the shared surfaces and the encoder.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for c, s := range d.surfaces {
		errs = append(errs, s.Close())
		delete(d.surfaces, c)
	}
	if d.Slot != nil {
		errs = append(errs, d.Slot.Close())
	}
	return errors.Join(errs...)
}

// surface must be called with mu held.
func (d *Dispatcher) surface(c model.Canvas) *render.Surface {
	if d.surfaces == nil {
		d.surfaces = make(map[model.Canvas]*render.Surface)
	}
	s, ok := d.surfaces[c]
	if !ok {
		s = render.NewSurface(c)
		d.surfaces[c] = s
	}
	return s
}

func (d *Dispatcher) run(ctx context.Context, kind Kind, req Request, geom *geometry.Geometry, surface *render.Surface, w io.Writer, progress model.ProgressFunc) (Output, error) {
	progress(model.Progress{Stage: model.StagePreparing, Percent: 0, Message: "Loading assets"})

	photos := req.Listing.Photos
	if kind == KindGIFVideo {
		photos = nil
	}
	set, err := d.Assets.Preload(ctx, photos, req.Brand.LogoURL, kind != KindGIFVideo)
	if err != nil {
		return Output{}, err
	}

	seq := sequence.New(d.Renderer, surface)
	in := sequence.Input{
		Listing:  req.Listing,
		Brand:    req.Brand,
		Style:    req.Style,
		Geometry: geom,
		Assets:   set,
	}

	switch kind {
	case KindStill:
		return d.runStill(ctx, seq, in, req, w, progress)
	case KindGIFRendered:
		src := &gif.RenderedSource{Sequencer: seq, Input: in, SlideDuration: d.slide()}
		return d.runGIF(ctx, src, req, w, progress)
	case KindGIFVideo:
		src := &gif.VideoSource{Runner: d.Clips, MaxWidth: gifWidth(d.GIF)}
		for _, c := range req.Listing.Videos {
			src.Clips = append(src.Clips, gif.Clip{URL: c.URL, Declared: time.Duration(c.Duration * float64(time.Second))})
		}
		return d.runGIF(ctx, src, req, w, progress)
	case KindStitch:
		st := &video.Stitcher{Slot: d.Slot, Hold: d.StillHold}
		frames := &video.SequenceFrames{Sequencer: seq, Input: in}
		if req.Content == model.ContentSingle {
			in.Style.Summary = false
			frames.Input = in
		}
		c, err := st.Export(ctx, frames, w, progress)
		return Output{Ext: c.Ext, ContentType: c.ContentType, Frames: frames.Len()}, err
	case KindLiveCapture:
		return d.runLive(ctx, seq, in, w, progress)
	}
	return Output{}, fmt.Errorf("no pipeline for %s", kind)
}

func (d *Dispatcher) runStill(ctx context.Context, seq *sequence.Sequencer, in sequence.Input, req Request, w io.Writer, progress model.ProgressFunc) (Output, error) {
	if req.FrameIndex >= sequence.FrameCount(in) {
		return Output{}, exporterr.Invalid("frameIndex", fmt.Sprintf("frame %d does not exist", req.FrameIndex))
	}
	progress(model.Progress{Stage: model.StageCapturing, Percent: 40, Message: "Rendering frame", CurrentFrame: req.FrameIndex + 1, TotalFrames: 1})

	opts := still.Options{Format: req.Format, Quality: req.Quality, Watermark: req.Watermark, Fonts: in.Assets.Fonts}
	err := seq.RenderFrame(ctx, in, req.FrameIndex, in.Geometry.Logo.EntranceFor, func(ctx context.Context, f sequence.Frame) error {
		progress(model.Progress{Stage: model.StageEncoding, Percent: 70, Message: "Encoding image"})
		return still.Export(ctx, f.Surface, w, opts)
	})
	if err != nil {
		return Output{}, err
	}
	progress(model.Progress{Stage: model.StageComplete, Percent: 100, Message: "Image ready", CurrentFrame: 1, TotalFrames: 1})
	return Output{Ext: string(req.Format), ContentType: still.ContentType(req.Format), Frames: 1}, nil
}

func (d *Dispatcher) runGIF(ctx context.Context, src gif.Source, req Request, w io.Writer, progress model.ProgressFunc) (Output, error) {
	dur, err := src.Duration(ctx)
	if err != nil {
		return Output{}, err
	}
	preset, err := gif.PresetByName(req.GIFPreset, dur)
	if err != nil {
		return Output{}, exporterr.Invalid("gifPreset", err.Error())
	}
	log.Printf("[GIFExport] Source %s, preset %s", dur, preset.Name)

	var frames int
	err = d.GIF.Export(ctx, src, preset, w, func(p model.Progress) {
		if p.TotalFrames > 0 {
			frames = p.TotalFrames
		}
		progress(p)
	})
	return Output{Ext: "gif", ContentType: "image/gif", Frames: frames, Preset: preset.Name}, err
}

func (d *Dispatcher) runLive(ctx context.Context, seq *sequence.Sequencer, in sequence.Input, w io.Writer, progress model.ProgressFunc) (Output, error) {
	if d.Live == nil {
		return Output{}, exporterr.Invalid("format", "live capture is not configured")
	}
	// Live capture also needs the encoder slot so video jobs stay serialized.
	h, err := d.Slot.Acquire()
	if err != nil {
		return Output{}, err
	}
	defer h.Release()

	lc := *d.Live
	lc.Sequencer = seq
	if lc.FPS == 0 {
		lc.FPS = d.LiveFPS
	}
	if lc.SlideDuration == 0 {
		lc.SlideDuration = d.slide()
	}
	c, err := lc.Export(ctx, in, w, progress)
	return Output{Ext: c.Ext, ContentType: c.ContentType, Frames: sequence.FrameCount(in)}, err
}

func (d *Dispatcher) slide() time.Duration {
	if d.SlideDuration > 0 {
		return d.SlideDuration
	}
	return video.DefaultHold
}

func gifWidth(p *gif.Pipeline) int {
	if p == nil || p.BaseWidth <= 0 {
		return gif.DefaultBaseWidth
	}
	return p.BaseWidth
}
