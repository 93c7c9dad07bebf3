// Package gif turns a frame source into an animated GIF. Frames are extracted
// in order and quantized by a bounded worker pool while extraction continues.
package gif

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	imggif "image/gif"
	"io"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
	"golang.org/x/sync/errgroup"

	"github.com/listingcast/api/internal/model"
)

// DefaultBaseWidth is the output width at preset scale 1.
const DefaultBaseWidth = model.CanvasWidth

const paletteSize = 256

// Pipeline encodes GIFs
type Pipeline struct {
	Workers   int
	BaseWidth int
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		Workers:   min(runtime.NumCPU(), 8),
		BaseWidth: DefaultBaseWidth,
	}
}

type encodedFrame struct {
	img   *image.Paletted
	ticks int
}

// Export extracts every frame of src at the preset rate, quantizes them in
// parallel and writes the animation to w. Nothing is written unless every
// frame was compiled.
func (p *Pipeline) Export(ctx context.Context, src Source, preset Preset, w io.Writer, progress model.ProgressFunc) error {
	if preset.FPS <= 0 {
		return fmt.Errorf("gif preset %q has no frame rate", preset.Name)
	}
	if progress == nil {
		progress = func(model.Progress) {}
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	width := p.BaseWidth
	if width <= 0 {
		width = DefaultBaseWidth
	}
	width = int(math.Round(float64(width) * preset.Scale))

	progress(model.Progress{Stage: model.StagePreparing, Percent: 0, Message: "Preparing GIF"})

	track := &tracker{report: progress}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu     sync.Mutex
		frames []encodedFrame
	)

	emit := func(f SourceFrame) error {
		mu.Lock()
		idx := len(frames)
		frames = append(frames, encodedFrame{ticks: max(f.Ticks, 1)})
		mu.Unlock()
		track.emitted()

		img := f.Image
		// Go blocks while the pool is full, which bounds the frames held in memory.
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pal := quantizeFrame(imaging.Resize(img, width, 0, imaging.Lanczos), preset)
			mu.Lock()
			frames[idx].img = pal
			mu.Unlock()
			track.compiled()
			return nil
		})
		return nil
	}

	extractErr := src.Extract(gctx, preset.FPS, emit, track.extracted)
	if err := g.Wait(); err != nil {
		return err
	}
	if extractErr != nil {
		return extractErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("gif source produced no frames")
	}
	track.finishExtraction()

	tick := preset.TickCentiseconds()
	anim := &imggif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, f.img)
		anim.Delay = append(anim.Delay, f.ticks*tick)
	}

	if err := imggif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	log.Printf("[GIFExport] Encoded %d frames with preset %s at %dpx", len(frames), preset.Name, width)

	progress(model.Progress{Stage: model.StageComplete, Percent: 100, Message: "GIF ready", CurrentFrame: len(frames), TotalFrames: len(frames)})
	return nil
}

// quantizeFrame maps img onto a median-cut palette built from every
// Quality-th pixel.
func quantizeFrame(img image.Image, preset Preset) *image.Paletted {
	b := img.Bounds()
	q := quantize.MedianCutQuantizer{}
	colors := q.Quantize(make(color.Palette, 0, paletteSize), samplePixels(img, preset.Quality))

	pal := image.NewPaletted(b, colors)
	if preset.Dithered() {
		draw.FloydSteinberg.Draw(pal, b, img, b.Min)
	} else {
		draw.Draw(pal, b, img, b.Min, draw.Src)
	}
	return pal
}

// samplePixels copies every step-th pixel of img into a one-row image.
func samplePixels(img image.Image, step int) image.Image {
	step = max(step, 1)
	b := img.Bounds()
	n := (b.Dx()*b.Dy() + step - 1) / step
	out := image.NewNRGBA(image.Rect(0, 0, n, 1))
	for i := 0; i < n; i++ {
		p := i * step
		out.Set(i, 0, img.At(b.Min.X+p%b.Dx(), b.Min.Y+p/b.Dx()))
	}
	return out
}

// tracker folds extraction and compile progress into one monotonic percent.
// Extraction covers 5..50 and compilation 50..95.
type tracker struct {
	mu      sync.Mutex
	report  model.ProgressFunc
	extract float64
	done    bool
	seen    int
	compile int
	last    int
}

func (t *tracker) extracted(current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if total > 0 {
		t.extract = math.Min(1, float64(current)/float64(total))
	}
	t.publish(model.StageCapturing, "Capturing frames")
}

func (t *tracker) emitted() {
	t.mu.Lock()
	t.seen++
	t.mu.Unlock()
}

func (t *tracker) compiled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compile++
	stage, msg := model.StageCapturing, "Capturing frames"
	if t.done {
		stage, msg = model.StageEncoding, "Encoding GIF"
	}
	t.publish(stage, msg)
}

func (t *tracker) finishExtraction() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.extract = 1
	t.publish(model.StageEncoding, "Encoding GIF")
}

// publish must be called with mu held.
func (t *tracker) publish(stage model.ExportStage, msg string) {
	compiled := 0.0
	if t.seen > 0 {
		compiled = float64(t.compile) / float64(t.seen) * t.extract
	}
	pct := 5 + int(math.Round(45*t.extract+45*compiled))
	if pct < t.last {
		pct = t.last
	}
	t.last = pct
	t.report(model.Progress{
		Stage:        stage,
		Percent:      pct,
		Message:      msg,
		CurrentFrame: t.compile,
		TotalFrames:  t.seen,
	})
}
