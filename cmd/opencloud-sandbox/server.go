package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/httpx"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore/mock"
)

type failConfig struct {
	rate float64
	code int
}

type serverConfig struct {
	apiKey  string
	latency time.Duration
	fail    failConfig
	// chance replaces rand.Float64 in tests.
	chance func() float64
}

func newApp(store *mock.Mock, cfg serverConfig, logger *zap.Logger) *fiber.App {
	if cfg.chance == nil {
		cfg.chance = rand.Float64
	}

	app := fiber.New(fiber.Config{
		AppName:               "opencloud-sandbox",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":    "INTERNAL",
				"message": err.Error(),
			})
		},
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/ordered-data-stores",
		requestLogger(logger),
		injectFaults(cfg),
		requireAPIKey(cfg.apiKey),
	)
	api.All("/*", func(c *fiber.Ctx) error {
		query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"code":    "INVALID_ARGUMENT",
				"message": "malformed query string",
			})
		}
		path := string(c.Request().URI().PathOriginal())
		status, body := store.Handle(c.UserContext(), c.Method(), path, query, c.Body())
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(status).Send(body)
	})

	return app
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("elapsed", time.Since(started)))
		return err
	}
}

func injectFaults(cfg serverConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.latency > 0 {
			time.Sleep(cfg.latency)
		}
		if cfg.fail.rate > 0 && cfg.chance() < cfg.fail.rate {
			status := cfg.fail.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return c.Status(status).JSON(fiber.Map{
				"code":    "INJECTED_FAILURE",
				"message": "failure injected",
			})
		}
		return c.Next()
	}
}

func requireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key != "" && c.Get(httpx.APIKeyHeader) != key {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHENTICATED",
				"message": "invalid API key",
			})
		}
		return c.Next()
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return failConfig{}, err
			}
			if rate < 0 || rate > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v is outside [0, 1]", rate)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return failConfig{}, err
			}
			if code < 400 || code > 599 {
				return failConfig{}, fmt.Errorf("fail code %d is not an error status", code)
			}
			cfg.code = code
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return cfg, nil
}
