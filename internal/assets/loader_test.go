package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/listingcast/api/internal/exporterr"
)

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][][]byte // successive responses per ref
	allow   map[string]string
	errs    map[string]error
	fetches map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:  make(map[string][][]byte),
		allow:   make(map[string]string),
		errs:    make(map[string]error),
		fetches: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.fetches[ref]
	f.fetches[ref] = n + 1
	if err := f.errs[ref]; err != nil {
		return nil, err
	}
	bodies := f.bodies[ref]
	if len(bodies) == 0 {
		return nil, errors.New("not found")
	}
	if n >= len(bodies) {
		n = len(bodies) - 1
	}
	return &Response{Body: bodies[n], AllowOrigin: f.allow[ref]}, nil
}

func (f *fakeFetcher) count(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[ref]
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPreload(t *testing.T) {
	f := newFakeFetcher()
	f.bodies["https://cdn.test/1.png"] = [][]byte{pngBytes(t, 4, 2, color.White)}
	f.bodies["https://cdn.test/2.png"] = [][]byte{pngBytes(t, 2, 4, color.Black)}
	f.bodies["https://brand.test/logo.png"] = [][]byte{pngBytes(t, 3, 3, color.White)}

	loader := NewLoader(f, NewMemoryCache(), Options{AllowedOrigins: []string{"cdn.test", "https://brand.test"}})
	set, err := loader.Preload(context.Background(),
		[]string{"https://cdn.test/1.png", "https://cdn.test/2.png"},
		"https://brand.test/logo.png", true)
	if err != nil {
		t.Fatalf("preload failed: %v", err)
	}

	if len(set.Photos) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(set.Photos))
	}
	if b := set.Photos[0].Img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("photo order not preserved, first photo is %v", b)
	}
	if set.Logo == nil || set.Logo.Tainted {
		t.Errorf("expected untainted logo, got %+v", set.Logo)
	}
	if set.Fonts == nil {
		t.Error("expected fonts to be ready")
	}
	if set.Photo(5) != nil {
		t.Error("expected nil for out of range photo")
	}
}

func TestLoad_RetriesDecodeOnce(t *testing.T) {
	ref := "https://cdn.test/flaky.png"
	f := newFakeFetcher()
	f.bodies[ref] = [][]byte{[]byte("truncated"), pngBytes(t, 2, 2, color.White)}

	loader := NewLoader(f, NewMemoryCache(), Options{})
	img, err := loader.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if img.Img == nil {
		t.Fatal("expected decoded image")
	}
	if got := f.count(ref); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestLoad_DecodeFailsTwice(t *testing.T) {
	ref := "https://cdn.test/broken.png"
	f := newFakeFetcher()
	f.bodies[ref] = [][]byte{[]byte("nope")}

	loader := NewLoader(f, nil, Options{})
	_, err := loader.Load(context.Background(), ref)

	var loadErr *exporterr.AssetLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected AssetLoadError, got %v", err)
	}
	if loadErr.Ref != ref {
		t.Errorf("expected ref %s, got %s", ref, loadErr.Ref)
	}
	if got := f.count(ref); got != 2 {
		t.Errorf("expected exactly one retry, got %d fetches", got)
	}
}

func TestPreload_FetchError(t *testing.T) {
	f := newFakeFetcher()
	f.errs["https://cdn.test/404.png"] = errors.New("status 404")

	loader := NewLoader(f, nil, Options{})
	_, err := loader.Preload(context.Background(), []string{"https://cdn.test/404.png"}, "", false)

	var loadErr *exporterr.AssetLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected AssetLoadError, got %v", err)
	}
}

func TestLoad_UsesCache(t *testing.T) {
	ref := "https://cdn.test/cached.png"
	f := newFakeFetcher()
	f.bodies[ref] = [][]byte{pngBytes(t, 2, 2, color.White)}

	loader := NewLoader(f, NewMemoryCache(), Options{CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		if _, err := loader.Load(context.Background(), ref); err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}
	if got := f.count(ref); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestTainted(t *testing.T) {
	loader := NewLoader(nil, nil, Options{
		Origin:         "https://app.listingcast.test",
		AllowedOrigins: []string{"cdn.listingcast.test"},
	})

	tests := []struct {
		name  string
		ref   string
		allow string
		want  bool
	}{
		{"allow-listed host", "https://cdn.listingcast.test/a.jpg", "", false},
		{"wildcard cors", "https://other.test/a.jpg", "*", false},
		{"our origin", "https://other.test/a.jpg", "https://app.listingcast.test", false},
		{"foreign origin", "https://other.test/a.jpg", "https://evil.test", true},
		{"no cors", "https://other.test/a.jpg", "", true},
		{"local reference", "uploads/a.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loader.Tainted(tt.ref, tt.allow); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Second)
	if v, err := c.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, err)
	}

	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after ttl, got %v", err)
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	res, ok := decodeEntry(encodeEntry(&Response{Body: []byte("a\nb"), AllowOrigin: "*"}))
	if !ok || res.AllowOrigin != "*" || string(res.Body) != "a\nb" {
		t.Errorf("unexpected entry %+v", res)
	}
}
