package e2e

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/listingcast/api/internal/assets"
	"github.com/listingcast/api/internal/config"
	"github.com/listingcast/api/internal/handler"
	"github.com/listingcast/api/internal/middleware"
	"github.com/listingcast/api/internal/render"
	"github.com/listingcast/api/internal/service"
	"github.com/listingcast/api/internal/websocket"
)

const testRedisAddr = "localhost:6379"

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	storage *memStorage
}

// solidPreloader stands in for the asset loader so tests never fetch.
type solidPreloader struct{}

func (solidPreloader) Preload(_ context.Context, refs []string, _ string, _ bool) (*assets.Set, error) {
	set := &assets.Set{}
	for _, ref := range refs {
		img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				img.Set(x, y, color.NRGBA{R: 30, G: 110, B: 180, A: 255})
			}
		}
		set.Photos = append(set.Photos, &assets.Image{Ref: ref, Img: img})
	}
	return set, nil
}

// memStorage is an in-memory R2 bucket
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.GetPublicURL(key), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) GetSignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return m.GetPublicURL(key) + "?signed", nil
}

func (m *memStorage) GetPublicURL(key string) string { return "https://media.test/" + key }

func (m *memStorage) HealthCheck(context.Context) error { return nil }

func (m *memStorage) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// setupApp creates a Fiber app wired like main.go, with Redis on DB 15 and
// in-memory stand-ins for R2 and the asset fetcher. It skips when Redis is
// not reachable.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: testRedisAddr,
		DB:   15, // use DB 15 for tests to avoid collision
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		t.Skipf("skipping: redis not available at %s: %v", testRedisAddr, err)
	}
	t.Cleanup(func() { redisClient.Close() })

	redisOpt := asynq.RedisClientOpt{Addr: testRedisAddr, DB: 15}
	asynqClient := asynq.NewClient(redisOpt)
	t.Cleanup(func() { asynqClient.Close() })
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() { inspector.Close() })

	validate := validator.New()
	storage := &memStorage{objects: map[string][]byte{}}

	exportService := service.NewExportService(redisClient, asynqClient, inspector, time.Minute)
	previewService := service.NewPreviewService(solidPreloader{}, render.NewRenderer("es"))
	t.Cleanup(func() { previewService.Close() })
	uploadService := service.NewUploadService(storage)

	hub := websocket.NewHub()
	go hub.Run()

	// Use very high rate limits so tests don't get blocked
	routes := &handler.Routes{
		Export:  handler.NewExportHandler(exportService, validate),
		Preview: handler.NewPreviewHandler(previewService, validate),
		Upload:  handler.NewUploadHandler(uploadService, validate),
		Hub:     hub,
		Limiter: middleware.NewRateLimiter(redisClient),
		Limits: config.RateLimitConfig{
			ExportPerHour: 10000,
			PreviewPerMin: 10000,
			UploadPerHour: 10000,
		},
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 110 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  true,
				"r2":     true,
				"ffmpeg": false,
			},
		})
	})

	routes.Register(app)

	return &testApp{app: app, storage: storage}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected an error object, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
