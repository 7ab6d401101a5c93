// Package web serves the local status and control API for a session:
// JSON endpoints, live event and camera preview websockets, and
// Prometheus metrics.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-arvoice/internal/metrics"
	"github.com/teslashibe/go-arvoice/pkg/camera"
	"github.com/teslashibe/go-arvoice/pkg/hub"
	"github.com/teslashibe/go-arvoice/pkg/session"
)

// Controller is the part of a session the server drives.
type Controller interface {
	Status() session.Status
	Transcript() *session.Transcript
	Connect(ctx context.Context) error
	StartCapture(ctx context.Context) error
	StopCapture() error
	Flush(ctx context.Context) error
}

// Server is the status and control server
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	session Controller
	camera  *camera.Manager

	// Hubs for websocket broadcast
	eventHub  *hub.Hub
	cameraHub *hub.Hub
}

// Options configures optional server features.
type Options struct {
	// Camera enables the camera config endpoints.
	Camera *camera.Manager

	// Gatherer enables GET /metrics.
	Gatherer prometheus.Gatherer

	// CameraHub carries JPEG previews to /ws/camera. One is created when nil.
	CameraHub *hub.Hub

	Logger *slog.Logger
}

// NewServer creates a new server for ctrl listening on addr
func NewServer(addr string, ctrl Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:      addr,
		logger:    logger.With("component", "web"),
		session:   ctrl,
		camera:    opts.Camera,
		eventHub:  hub.New("events", logger),
		cameraHub: opts.CameraHub,
	}
	if s.cameraHub == nil {
		s.cameraHub = hub.New("camera", logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               "arvoice",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/transcript", s.handleTranscript)
	api.Post("/session/connect", s.handleConnect)
	api.Post("/capture/start", s.handleStartCapture)
	api.Post("/capture/stop", s.handleStopCapture)
	api.Post("/flush", s.handleFlush)
	if s.camera != nil {
		api.Get("/camera", s.handleGetCamera)
		api.Put("/camera", s.handleUpdateCamera)
		api.Get("/camera/presets", s.handleCameraPresets)
	}

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(opts.Gatherer)))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("status server listening", "addr", s.addr)

	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// PublishEvent broadcasts a session event to /ws/events clients.
// It is suitable as a session OnEvent handler.
func (s *Server) PublishEvent(e session.Event) {
	if err := s.eventHub.BroadcastJSON(e); err != nil {
		s.logger.Warn("failed to encode event", "error", err)
	}
}

// PreviewFrames wraps src so every new snapshot is also broadcast on h.
func PreviewFrames(src session.FrameSource, h *hub.Hub) session.FrameSource {
	return &previewSource{src: src, hub: h}
}

type previewSource struct {
	src session.FrameSource
	hub *hub.Hub
}

func (p *previewSource) Snapshot(ctx context.Context) ([]byte, error) {
	jpeg, err := p.src.Snapshot(ctx)
	if err == nil && jpeg != nil && p.hub.ClientCount() > 0 {
		p.hub.BroadcastJPEG(jpeg)
	}
	return jpeg, err
}
