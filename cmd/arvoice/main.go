// arvoice - live voice and camera session with a streaming AI endpoint.
// Captures microphone audio and periodic camera snapshots, streams them
// over a WebSocket and plays back the spoken reply.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-arvoice/internal/config"
	applog "github.com/teslashibe/go-arvoice/internal/log"
	"github.com/teslashibe/go-arvoice/internal/metrics"
	_ "github.com/teslashibe/go-arvoice/pkg/audioio/portaudio"
	"github.com/teslashibe/go-arvoice/pkg/camera"
	"github.com/teslashibe/go-arvoice/pkg/camera/webcam"
	"github.com/teslashibe/go-arvoice/pkg/hub"
	"github.com/teslashibe/go-arvoice/pkg/session"
	"github.com/teslashibe/go-arvoice/pkg/web"
)

type flags struct {
	configPath string
	debug      bool
	connect    bool
	capture    bool
	noCamera   bool
	noWeb      bool
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}
	if f.noCamera {
		cfg.Camera.Enabled = false
	}
	if f.noWeb {
		cfg.Web.Enabled = false
	}

	applog.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f, applog.L()); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags parses command line flags.
func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.BoolVar(&f.debug, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&f.connect, "connect", true, "Connect to the endpoint on startup")
	flag.BoolVar(&f.capture, "capture", true, "Start microphone and camera capture on startup")
	flag.BoolVar(&f.noCamera, "no-camera", false, "Disable camera snapshots")
	flag.BoolVar(&f.noWeb, "no-web", false, "Disable the status server")
	flag.Parse()
	return f
}

func run(ctx context.Context, cfg *config.Config, f flags, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cameraHub := hub.New("camera", logger)

	sessCfg := cfg.Session
	sessCfg.Logger = logger
	sessCfg.Metrics = metrics.New(reg)

	var cameraMgr *camera.Manager
	if cfg.Camera.Enabled {
		cam, err := webcam.New(cfg.Camera, logger)
		if err != nil {
			return err
		}
		defer cam.Close()

		cameraMgr = camera.NewManager(cfg.Camera)
		cameraMgr.OnConfigChange = cam.Reconfigure

		sessCfg.Frames = web.PreviewFrames(cam, cameraHub)
		sessCfg.FrameInterval = cfg.Camera.Interval
	}

	sess, err := session.New(sessCfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("session created",
		"session_id", sess.ID(),
		"endpoint", cfg.Session.Endpoint,
		"model", cfg.Session.Model,
		"camera", cfg.Camera.Enabled,
	)

	srv := web.NewServer(cfg.Web.Addr, sess, web.Options{
		Camera:    cameraMgr,
		Gatherer:  reg,
		CameraHub: cameraHub,
		Logger:    logger,
	})

	sess.OnEvent(func(e session.Event) {
		srv.PublishEvent(e)
		if e.Type == session.EventTranscript && e.Entry != nil {
			logger.Info("💬 "+e.Entry.Text, "role", e.Entry.Role)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Web.Enabled {
		g.Go(func() error {
			return srv.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown()
		})
	}

	g.Go(func() error {
		if f.connect {
			// Failed opens are retried by the session itself.
			if err := sess.Connect(gctx); err != nil {
				logger.Warn("initial connect failed", "error", err)
			}
		}
		if f.capture {
			if err := sess.StartCapture(gctx); err != nil {
				logger.Error("capture unavailable", "error", err)
			}
		}
		<-gctx.Done()
		logger.Info("shutting down")
		return sess.Close()
	})

	return g.Wait()
}
