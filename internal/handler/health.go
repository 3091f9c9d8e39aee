package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/pkg/response"
)

// ServiceName and Version identify the gateway in health responses.
const (
	ServiceName = "vision-gateway"
	Version     = "0.1.0"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

type storePinger interface {
	Ping(ctx context.Context) error
}

type brokerHealth interface {
	HealthCheck() bool
}

// HealthHandler serves liveness, readiness and a minimal metrics endpoint.
// The startup timestamp is captured once in main and passed in, so uptime
// has a single well-defined origin.
type HealthHandler struct {
	startedAt time.Time
	db        dbPinger
	jobs      storePinger
	broker    brokerHealth
}

// NewHealthHandler wires the readiness dependencies. db may be nil when no
// database DSN is configured; the readiness check then skips it.
func NewHealthHandler(startedAt time.Time, db dbPinger, jobs storePinger, broker brokerHealth) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db, jobs: jobs, broker: broker}
}

func (h *HealthHandler) uptimeSeconds() int64 {
	return int64(time.Since(h.startedAt).Seconds())
}

// Health handles GET /health: process liveness only, no dependency calls.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"status":         "healthy",
		"service":        ServiceName,
		"version":        Version,
		"uptime_seconds": h.uptimeSeconds(),
	})
}

// Ready handles GET /ready: pings every configured dependency and reports
// 503 with per-dependency detail when any fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(c.Context()); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if err := h.jobs.Ping(c.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if h.broker.HealthCheck() {
		checks["rabbitmq"] = "ok"
	} else {
		checks["rabbitmq"] = "connection closed"
		healthy = false
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response.Envelope{
			Success:   false,
			Data:      checks,
			Message:   "one or more dependencies are unavailable",
			Timestamp: time.Now().UTC(),
		})
	}
	return response.OK(c, checks)
}

// Metrics handles GET /metrics: uptime plus static placeholders. There is
// no metrics pipeline behind this.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"service":        ServiceName,
		"uptime_seconds": h.uptimeSeconds(),
		"requests_total": 0,
		"jobs_in_flight": 0,
	})
}
