package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/worldsnap/worldsnap/internal/hotcache"
	"github.com/worldsnap/worldsnap/internal/save"
	"github.com/worldsnap/worldsnap/internal/session"
	"github.com/worldsnap/worldsnap/internal/stats"
	"github.com/worldsnap/worldsnap/internal/version"
)

// Saver runs save passes. It allows injecting fake orchestrators during tests.
type Saver interface {
	Run(ctx context.Context) (stats.Report, error)
	Running() bool
	LastReport() (stats.Report, bool)
}

// CacheView exposes the read-only cache figures shown by /-/status.
type CacheView interface {
	Len() int
	Cells() []hotcache.CellKey
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Saver  Saver
	Cache  CacheView
}

const contextKeyRequestID = "_worldsnap_request_id"

// NewApp builds a Fiber application with request-id middleware, panic
// recovery and the save/status routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Saver == nil {
		return nil, errors.New("saver is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache view is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Post("/-/save", saveHandler(opts))
	app.Get("/-/status", statusHandler(opts))

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func saveHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		fields := logrus.Fields{
			"action":     "save_trigger",
			"request_id": RequestID(c),
		}
		report, err := opts.Saver.Run(c.Context())
		switch {
		case errors.Is(err, save.ErrPassInProgress):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "pass_in_progress"})
		case errors.Is(err, session.ErrUnavailable):
			opts.Logger.WithFields(fields).WithError(err).Error("save pass aborted")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "storage_unavailable",
				"report": report,
			})
		case err != nil:
			opts.Logger.WithFields(fields).WithError(err).Warn("save pass incomplete")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "pass_incomplete",
				"report": report,
			})
		}
		opts.Logger.WithFields(fields).WithField("pass_id", report.PassID).Info("save pass triggered")
		return c.JSON(report)
	}
}

type statusPayload struct {
	Running     bool          `json:"running"`
	CachedItems int           `json:"cached_items"`
	Cells       int           `json:"cells"`
	LastReport  *stats.Report `json:"last_report,omitempty"`
	Build       version.Info  `json:"build"`
}

func statusHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		payload := statusPayload{
			Running:     opts.Saver.Running(),
			CachedItems: opts.Cache.Len(),
			Cells:       len(opts.Cache.Cells()),
			Build:       version.Current(),
		}
		if report, ok := opts.Saver.LastReport(); ok {
			payload.LastReport = &report
		}
		return c.JSON(payload)
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
