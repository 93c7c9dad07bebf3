// Package assets fetches, decodes and caches the photos, logos and fonts a
// frame is painted from, and tracks which of them would taint a surface.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/listingcast/api/internal/exporterr"
)

// Response is the raw result of fetching one asset reference.
type Response struct {
	Body []byte
	// AllowOrigin is the Access-Control-Allow-Origin value granted by the host.
	AllowOrigin string
}

// Fetcher retrieves asset bytes. Implementations must not send credentials.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*Response, error)
}

// Image is a decoded asset
type Image struct {
	Ref     string
	Img     image.Image
	Tainted bool
}

// Set holds everything one export paints from
type Set struct {
	Photos    []*Image
	Logo      *Image
	Watermark *Image
	Fonts     *Fonts
}

// Photo returns photo i, or nil when out of range.
func (s *Set) Photo(i int) *Image {
	if s == nil || i < 0 || i >= len(s.Photos) {
		return nil
	}
	return s.Photos[i]
}

// Options configures a Loader
type Options struct {
	Origin         string
	AllowedOrigins []string
	CacheTTL       time.Duration
	FontsDir       string
	WatermarkRef   string
	Parallelism    int
}

// Loader preloads the assets of an export
type Loader struct {
	fetcher   Fetcher
	cache     Cache
	opts      Options
	allowed   map[string]bool
	fontsOnce sync.Once
	fonts     *Fonts
	fontsErr  error
}

func NewLoader(fetcher Fetcher, cache Cache, opts Options) *Loader {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		if strings.Contains(o, "://") {
			o = hostOf(o)
		}
		allowed[strings.ToLower(strings.TrimSpace(o))] = true
	}
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		opts:    opts,
		allowed: allowed,
	}
}

// Fonts parses the font set once and returns it.
func (l *Loader) Fonts() (*Fonts, error) {
	l.fontsOnce.Do(func() {
		l.fonts, l.fontsErr = LoadFonts(l.opts.FontsDir)
	})
	return l.fonts, l.fontsErr
}

// Preload fetches and decodes every photo, the logo and the configured
// watermark. With requireFonts the font set must be ready too; otherwise a
// font failure leaves Set.Fonts nil and text layers are skipped.
func (l *Loader) Preload(ctx context.Context, photoRefs []string, logoRef string, requireFonts bool) (*Set, error) {
	set := &Set{Photos: make([]*Image, len(photoRefs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Parallelism)

	for i, ref := range photoRefs {
		g.Go(func() error {
			img, err := l.Load(gctx, ref)
			if err != nil {
				return err
			}
			set.Photos[i] = img
			return nil
		})
	}
	if logoRef != "" {
		g.Go(func() error {
			img, err := l.Load(gctx, logoRef)
			if err != nil {
				return err
			}
			set.Logo = img
			return nil
		})
	}
	if l.opts.WatermarkRef != "" {
		g.Go(func() error {
			img, err := l.Load(gctx, l.opts.WatermarkRef)
			if err != nil {
				// The watermark is optional; a broken one is dropped.
				log.Printf("[Assets] watermark unavailable: %v", err)
				return nil
			}
			set.Watermark = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fonts, err := l.Fonts()
	if err != nil {
		if requireFonts {
			return nil, &exporterr.AssetLoadError{Ref: "fonts", Err: err}
		}
		log.Printf("[Assets] fonts unavailable, text layers disabled: %v", err)
	}
	set.Fonts = fonts

	return set, nil
}

// Load fetches and decodes one reference. A decode failure is retried once
// with a fresh fetch that bypasses the cache.
func (l *Loader) Load(ctx context.Context, ref string) (*Image, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		res, err := l.fetch(ctx, ref, attempt > 0)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &exporterr.AssetLoadError{Ref: ref, Err: err}
		}

		img, err := imaging.Decode(bytes.NewReader(res.Body), imaging.AutoOrientation(true))
		if err == nil {
			return &Image{Ref: ref, Img: img, Tainted: l.Tainted(ref, res.AllowOrigin)}, nil
		}
		lastErr = fmt.Errorf("decode: %w", err)
		log.Printf("[Assets] decode failed for %s (attempt %d): %v", ref, attempt+1, err)
		l.evict(ctx, ref)
	}
	return nil, &exporterr.AssetLoadError{Ref: ref, Err: lastErr}
}

// Tainted reports whether painting an asset from ref would taint a surface:
// the host is not allow-listed and the response did not grant CORS to us.
func (l *Loader) Tainted(ref, allowOrigin string) bool {
	host := hostOf(ref)
	if host == "" || l.allowed[host] {
		return false
	}
	if allowOrigin == "*" {
		return false
	}
	return l.opts.Origin == "" || !strings.EqualFold(strings.TrimSuffix(allowOrigin, "/"), strings.TrimSuffix(l.opts.Origin, "/"))
}

func (l *Loader) fetch(ctx context.Context, ref string, bypassCache bool) (*Response, error) {
	key := CacheKey(ref)
	if l.cache != nil && !bypassCache {
		data, err := l.cache.Get(ctx, key)
		if err == nil {
			if res, ok := decodeEntry(data); ok {
				return res, nil
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			log.Printf("[Assets] cache read failed for %s: %v", ref, err)
		}
	}

	res, err := l.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, encodeEntry(res), l.opts.CacheTTL); err != nil {
			log.Printf("[Assets] cache write failed for %s: %v", ref, err)
		}
	}
	return res, nil
}

func (l *Loader) evict(ctx context.Context, ref string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, CacheKey(ref)); err != nil {
		log.Printf("[Assets] cache evict failed for %s: %v", ref, err)
	}
}

// Cache entries are the Allow-Origin header, a newline, then the body.
func encodeEntry(res *Response) []byte {
	out := make([]byte, 0, len(res.AllowOrigin)+1+len(res.Body))
	out = append(out, res.AllowOrigin...)
	out = append(out, '\n')
	return append(out, res.Body...)
}

func decodeEntry(data []byte) (*Response, bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, false
	}
	return &Response{AllowOrigin: string(data[:i]), Body: data[i+1:]}, true
}

// hostOf returns the lower-cased host of an absolute URL; relative and
// local references have none.
func hostOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
