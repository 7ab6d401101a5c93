package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/camera"
	"github.com/teslashibe/go-arvoice/pkg/hub"
	"github.com/teslashibe/go-arvoice/pkg/session"
)

// handleStatus returns the session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.session.Status())
}

// handleTranscript returns the transcript
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.session.Transcript().Entries())
}

// handleConnect opens the channel
func (s *Server) handleConnect(c *fiber.Ctx) error {
	if err := s.session.Connect(c.UserContext()); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(s.session.Status())
}

// handleStartCapture starts microphone and camera capture
func (s *Server) handleStartCapture(c *fiber.Ctx) error {
	if err := s.session.StartCapture(c.UserContext()); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(s.session.Status())
}

// handleStopCapture stops capture
func (s *Server) handleStopCapture(c *fiber.Ctx) error {
	if err := s.session.StopCapture(); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(s.session.Status())
}

// handleFlush sends pending media immediately
func (s *Server) handleFlush(c *fiber.Ctx) error {
	if err := s.session.Flush(c.UserContext()); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleGetCamera returns the camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.camera.GetConfig())
}

// handleUpdateCamera applies a partial camera update
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.camera.GetConfig())
}

// handleCameraPresets lists camera presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

// errorJSON maps session errors to HTTP statuses
func errorJSON(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrAlreadyConnected), errors.Is(err, session.ErrCaptureActive):
		status = fiber.StatusConflict
	case errors.Is(err, session.ErrClosed):
		status = fiber.StatusGone
	case session.IsNotConnected(err):
		status = fiber.StatusServiceUnavailable
	case audioio.IsDeviceUnavailable(err):
		status = fiber.StatusServiceUnavailable
	case session.IsRetryable(err):
		status = fiber.StatusBadGateway
	default:
		var cerr *session.ConnectionError
		if errors.As(err, &cerr) {
			status = fiber.StatusBadGateway
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleEventsWS streams session events, starting with the current status
func (s *Server) handleEventsWS(c *websocket.Conn) {
	var initial []hub.Message
	if msg, err := hub.JSON(fiber.Map{"type": "status", "status": s.session.Status()}); err == nil {
		initial = append(initial, msg)
	}
	if client := hub.NewClient(s.eventHub, c, initial...); client != nil {
		client.Run()
	}
}

// handleCameraWS streams JPEG previews
func (s *Server) handleCameraWS(c *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, c); client != nil {
		client.Run()
	}
}
