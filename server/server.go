package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"smwall/models"
)

const (
	ssePath           = "/wall/feed/sse"
	keepAliveInterval = 5 * time.Second
)

type ServerConfig struct {
	// Comma separated list of origins allowed to connect from a browser
	AllowOrigins string

	// Broadcaster the SSE clients are registered with
	Broadcaster *Broadcaster

	// Status reports process state for the status endpoint
	Status func() models.WallStatus
}

// Returns a fiber.App serving the wall feed over SSE plus health, status and metrics
func Server(config *ServerConfig) *fiber.App {
	bc := config.Broadcaster

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New())

	// Compressing an event stream would buffer it
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/sse")
		},
	}))

	allowOrigins := config.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Cache-Control",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/wall/status", func(c *fiber.Ctx) error {
		if config.Status == nil {
			return c.JSON(models.WallStatus{Subscribers: bc.Count()})
		}
		return c.JSON(config.Status())
	})

	app.Delete(ssePath, func(c *fiber.Ctx) error {
		key := c.Query("key", "")
		if key == "" {
			return c.Status(fiber.StatusBadRequest).SendString("Missing key")
		}
		bc.RemoveClient(key)
		return c.Status(fiber.StatusOK).SendString("OK")
	})

	app.Get(ssePath, func(c *fiber.Ctx) error {
		key := uuid.New().String()
		batches, ok := bc.AddClient(key)
		if !ok {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Shutting down")
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer bc.RemoveClient(key)
			streamEvents(w, key, batches)
		}))

		return nil
	})

	return app
}

// streamEvents writes the init event, keep-alives and one event per batch
// until the client goes away or its channel is closed
func streamEvents(w *bufio.Writer, key string, batches <-chan models.MediaBatch) {
	aliveTicker := time.NewTicker(keepAliveInterval)
	defer aliveTicker.Stop()

	if err := writeEvent(w, "init", []byte(key)); err != nil {
		log.Errorf("Failed to send init event: %v", err)
		return
	}

	for {
		select {
		case <-aliveTicker.C:
			if err := writeEvent(w, "ping", nil); err != nil {
				log.Warnf("Failed to send ping to client %s: %v", key, err)
				return
			}

		case batch, ok := <-batches:
			if !ok {
				log.Infof("Batch channel closed for client %s", key)
				return
			}
			data, err := json.Marshal(batch)
			if err != nil {
				log.Errorf("Error marshalling batch for client %s: %v", key, err)
				continue
			}
			if err := writeEvent(w, "youtube-media", data); err != nil {
				log.Warnf("Failed to send youtube-media event to client %s: %v", key, err)
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
