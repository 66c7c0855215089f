package controller

import (
	"time"

	"gemini-rag-be/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	started time.Time
	host    string
	version string
}

func NewHealthController(started time.Time, host, version string) IHealthController {
	return &healthController{
		started: started,
		host:    host,
		version: version,
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(dto.HealthResponse{
		Status:  "ok",
		Started: c.started.UTC().Format(time.RFC3339),
		Host:    c.host,
		Version: c.version,
	})
}
