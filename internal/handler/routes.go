package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/listingcast/api/internal/config"
	"github.com/listingcast/api/internal/middleware"
	ws "github.com/listingcast/api/internal/websocket"
)

// Routes wires the API handlers into a fiber app
type Routes struct {
	Export  *ExportHandler
	Preview *PreviewHandler
	Upload  *UploadHandler
	Hub     *ws.Hub
	Limiter *middleware.RateLimiter
	Limits  config.RateLimitConfig
}

// Register mounts /api and /ws on app.
func (r *Routes) Register(app *fiber.App) {
	api := app.Group("/api")

	exports := api.Group("/exports")
	exports.Post("/", r.Limiter.ExportLimit(r.Limits.ExportPerHour), r.Export.Start)
	exports.Get("/:jobId/status", r.Export.Status)
	exports.Get("/:jobId/result", r.Export.Result)
	exports.Post("/:jobId/cancel", r.Export.Cancel)

	api.Post("/preview/frame", r.Limiter.PreviewLimit(r.Limits.PreviewPerMin), r.Preview.Frame)
	api.Get("/presets/gif", r.Preview.GIFPreset)

	api.Post("/uploads/media", r.Limiter.UploadLimit(r.Limits.UploadPerHour), r.Upload.Media)
	api.Delete("/uploads/media/:kind/:id.:ext", r.Upload.DeleteMedia)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/exports/:jobId", websocket.New(func(c *websocket.Conn) {
		r.Hub.HandleConnection(c, c.Params("jobId"))
	}))
}
