package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/export/gif"
	"github.com/listingcast/api/internal/export/video"
	"github.com/listingcast/api/internal/exporterr"
	"github.com/listingcast/api/internal/model"
	"github.com/listingcast/api/internal/render"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		content model.ContentType
		format  model.ExportFormat
		want    Kind
	}{
		{model.ContentSingle, model.FormatPNG, KindStill},
		{model.ContentCarousel, model.FormatJPEG, KindStill},
		{model.ContentCarousel, model.FormatGIF, KindGIFRendered},
		{model.ContentVideo, model.FormatGIF, KindGIFVideo},
		{model.ContentSingle, model.FormatMP4, KindStitch},
		{model.ContentCarousel, model.FormatMP4, KindStitch},
		{model.ContentCarousel, model.FormatWebM, KindLiveCapture},
		{model.ContentVideo, model.FormatPNG, 0},
		{model.ContentSingle, model.FormatGIF, 0},
		{model.ContentSingle, model.FormatWebM, 0},
		{model.ContentVideo, model.FormatMP4, 0},
		{model.ContentCarousel, "bmp", 0},
	}
	for _, tt := range tests {
		got, err := Select(tt.content, tt.format)
		if tt.want == 0 {
			var cfgErr *exporterr.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("%s/%s: expected ConfigError, got %v", tt.content, tt.format, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s/%s: expected %s, got %s (%v)", tt.content, tt.format, tt.want, got, err)
		}
	}
}

// gatedPreloader returns solid photos once its gate opens.
type gatedPreloader struct {
	gate chan struct{}
}

func (p *gatedPreloader) Preload(ctx context.Context, refs []string, logo string, requireFonts bool) (*assets.Set, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	set := &assets.Set{}
	for i := range refs {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, color.NRGBA{R: uint8(40 * i), G: 120, B: 200, A: 255})
			}
		}
		set.Photos = append(set.Photos, &assets.Image{Ref: refs[i], Img: img})
	}
	return set, nil
}

type memEncoder struct{}

func (memEncoder) Container() video.Container { return video.MP4 }
func (memEncoder) Close() error { return nil }

func (memEncoder) Begin(context.Context, time.Duration) (video.Session, error) {
	return &memSession{}, nil
}

type memSession struct{ frames int }

func (s *memSession) AddFrame(image.Image) error {
	s.frames++
	return nil
}

func (s *memSession) Finish(ctx context.Context, w io.Writer) error {
	_, err := w.Write([]byte(strings.Repeat("f", s.frames)))
	return err
}

func (s *memSession) Abort() {}

func testDispatcher(pre *gatedPreloader) *Dispatcher {
	return &Dispatcher{
		Assets:        pre,
		Renderer:      render.NewRenderer("es"),
		GIF:           &gif.Pipeline{Workers: 2, BaseWidth: 54},
		Slot:          video.NewSlot(func() (video.Encoder, error) { return memEncoder{}, nil }),
		SlideDuration: 500 * time.Millisecond,
	}
}

func testRequest(content model.ContentType, format model.ExportFormat, photos int) Request {
	style := model.DefaultStyle()
	style.Canvas = model.CanvasSquare
	style.Logo.Entrance = model.EntranceNone
	listing := &model.ListingData{PropertyType: model.PropertyApartment, Modality: model.ModalityRent, RentPrice: "1500"}
	for i := 0; i < photos; i++ {
		listing.Photos = append(listing.Photos, "https://cdn.test/p.jpg")
	}
	return Request{
		Content: content,
		Format:  format,
		Listing: listing,
		Brand:   &model.BrandConfig{Name: "Casa", PrimaryColor: "#0E7490"},
		Style:   style,
		Quality: 0.9,
	}
}

func TestStart_StillPNG(t *testing.T) {
	d := testDispatcher(&gatedPreloader{})
	defer d.Close()

	var buf bytes.Buffer
	var last model.Progress
	job, err := d.Start(context.Background(), testRequest(model.ContentSingle, model.FormatPNG, 1), &buf, func(p model.Progress) { last = p })
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := job.Wait(); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("expected a PNG: %v", err)
	}
	if img.Bounds().Dx() != 1080 {
		t.Errorf("expected 1080 wide, got %d", img.Bounds().Dx())
	}
	out := job.Output()
	if out.Ext != "png" || out.ContentType != "image/png" || out.Size == 0 {
		t.Errorf("unexpected output %+v", out)
	}
	if last.Stage != model.StageComplete || job.Progress().Percent != 100 {
		t.Errorf("expected complete progress, got %+v", last)
	}
}

func TestStart_FrameIndexOutOfRange(t *testing.T) {
	d := testDispatcher(&gatedPreloader{})
	req := testRequest(model.ContentCarousel, model.FormatJPEG, 3)
	req.FrameIndex = 5

	job, err := d.Start(context.Background(), req, io.Discard, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	var cfgErr *exporterr.ConfigError
	if err := job.Wait(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestStart_GIF(t *testing.T) {
	d := testDispatcher(&gatedPreloader{})

	var buf bytes.Buffer
	job, err := d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatGIF, 3), &buf, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := job.Wait(); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("GIF89a")) {
		t.Error("expected a GIF")
	}
	out := job.Output()
	if out.Preset != "premium" || out.Frames != 3 {
		t.Errorf("expected 3 premium frames, got %+v", out)
	}
}

func TestStart_Stitch(t *testing.T) {
	d := testDispatcher(&gatedPreloader{})

	var buf bytes.Buffer
	job, err := d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatMP4, 3), &buf, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := job.Wait(); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if buf.String() != "fff" {
		t.Errorf("expected three stitched frames, got %q", buf.String())
	}
	if job.Output().Ext != "mp4" {
		t.Errorf("expected mp4, got %s", job.Output().Ext)
	}
}

func TestStart_OneJobAtATime(t *testing.T) {
	pre := &gatedPreloader{gate: make(chan struct{})}
	d := testDispatcher(pre)

	job, err := d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatPNG, 3), io.Discard, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, err = d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatJPEG, 3), io.Discard, nil)
	var cfgErr *exporterr.ConfigError
	if !errors.As(err, &cfgErr) || !strings.Contains(err.Error(), "already running") {
		t.Errorf("expected already running ConfigError, got %v", err)
	}
	_, err = d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatMP4, 3), io.Discard, nil)
	if !errors.As(err, new(*exporterr.EncoderBusyError)) {
		t.Errorf("expected EncoderBusyError for video, got %v", err)
	}

	close(pre.gate)
	if err := job.Wait(); err != nil {
		t.Fatalf("first export failed: %v", err)
	}

	job, err = d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatPNG, 3), io.Discard, nil)
	if err != nil {
		t.Fatalf("expected start after completion, got %v", err)
	}
	job.Wait()
}

func TestStart_BusySlotRejectsBeforePreload(t *testing.T) {
	first := testDispatcher(&gatedPreloader{})
	h, err := first.Slot.Acquire()
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer h.Release()

	second := testDispatcher(&gatedPreloader{gate: make(chan struct{})})
	second.Slot = first.Slot
	for _, format := range []model.ExportFormat{model.FormatMP4, model.FormatWebM} {
		job, err := second.Start(context.Background(), testRequest(model.ContentCarousel, format, 3), io.Discard, nil)
		if job != nil {
			job.Cancel()
			job.Wait()
		}
		if !errors.As(err, new(*exporterr.EncoderBusyError)) {
			t.Errorf("%s: expected EncoderBusyError from Start, got %v", format, err)
		}
	}
	if second.Running() {
		t.Error("expected no job to be running")
	}

	job, err := second.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatPNG, 3), io.Discard, nil)
	if err != nil {
		t.Fatalf("expected a still export to start, got %v", err)
	}
	job.Cancel()
	job.Wait()
}

func TestStart_CancelWritesNothing(t *testing.T) {
	pre := &gatedPreloader{gate: make(chan struct{})}
	d := testDispatcher(pre)

	var buf bytes.Buffer
	job, err := d.Start(context.Background(), testRequest(model.ContentCarousel, model.FormatGIF, 3), &buf, nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	job.Cancel()

	if err := job.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no partial output, got %d bytes", buf.Len())
	}
	if d.Running() {
		t.Error("expected dispatcher idle after cancel")
	}
}

func TestStart_RejectsUnknownStyle(t *testing.T) {
	d := testDispatcher(&gatedPreloader{})
	req := testRequest(model.ContentSingle, model.FormatPNG, 1)
	req.Style.Logo.Position = "center"

	_, err := d.Start(context.Background(), req, io.Discard, nil)
	var cfgErr *exporterr.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if d.Running() {
		t.Error("expected no job for an invalid request")
	}
}
