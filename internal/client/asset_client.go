package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/config"
)

// MaxAssetBytes bounds a single fetched asset.
const MaxAssetBytes = 100 << 20

// AssetClient fetches photos, logos and watermarks over HTTP. Requests are
// anonymous: no cookies and no credentials, only an Origin header so the
// server can grant CORS.
type AssetClient struct {
	http   *retryablehttp.Client
	origin string
}

// NewAssetClient creates a new retrying asset fetcher
func NewAssetClient(cfg *config.RenderConfig) *AssetClient {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.RetryMax = cfg.FetchRetries
	rc.HTTPClient.Timeout = time.Duration(cfg.FetchTimeout) * time.Second
	rc.HTTPClient.Jar = nil
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Printf("[Assets] Retrying %s (attempt %d)", req.URL.Redacted(), attempt+1)
		}
	}

	return &AssetClient{http: rc, origin: cfg.Origin}
}

// Fetch implements assets.Fetcher
func (c *AssetClient) Fetch(ctx context.Context, ref string) (*assets.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,video/*;q=0.8,*/*;q=0.5")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("asset host returned status %d", resp.StatusCode)
	}

	body, err := readAllLimit(resp.Body, MaxAssetBytes)
	if err != nil {
		return nil, err
	}
	return &assets.Response{
		Body:        body,
		AllowOrigin: resp.Header.Get("Access-Control-Allow-Origin"),
	}, nil
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, errors.New("asset too large")
	}
	return b, nil
}
