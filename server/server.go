// Package server exposes the relay over WebSocket using Fiber.
package server

import (
	"context"
	"net"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	rr "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/mrsingh-rishi/speech-relay/auth"
	"github.com/mrsingh-rishi/speech-relay/config"
	"github.com/mrsingh-rishi/speech-relay/metrics"
	"github.com/mrsingh-rishi/speech-relay/session"
	"github.com/mrsingh-rishi/speech-relay/stt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	localPath    = "path"
	localSubject = "subject"
)

// Options holds the dependencies of a Server.
type Options struct {
	Config     *config.Config
	Recognizer stt.Recognizer
	Logger     *logrus.Logger

	// Metrics records relay metrics; nil disables them.
	Metrics *metrics.Metrics
	// Registry backs the HTTP metrics middleware and the metrics endpoint.
	// It is only used when Config.Metrics.Enabled is set.
	Registry interface {
		prometheus.Registerer
		prometheus.Gatherer
	}
}

// Server accepts WebSocket clients and runs one session per connection.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	rec      stt.Recognizer
	metrics  *metrics.Metrics
	verifier *auth.Verifier
	log      *logrus.Logger
	serveWS  fiber.Handler

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the Fiber application. Nothing listens until Listen or
// Listener is called.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      opts.Config,
		rec:      opts.Recognizer,
		metrics:  opts.Metrics,
		verifier: auth.NewVerifier(opts.Config.Auth.Secret),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	app := fiber.New(fiber.Config{
		AppName:               "speech-relay",
		DisableStartupMessage: true,
	})

	var metricsHandler fiber.Handler
	if s.cfg.Metrics.Enabled && opts.Registry != nil {
		prom := fiberprometheus.NewWithRegistry(opts.Registry, "speech-relay", "http", "", nil)
		app.Use(prom.Middleware)
		metricsHandler = adaptor.HTTPHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	app.Use(rr.New())

	// Upgrade requests on any path, including the HTTP routes below, get a
	// session.
	s.serveWS = websocket.New(s.handle)
	app.Use(s.upgrade)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if metricsHandler != nil {
		app.Get(s.cfg.Metrics.Path, metricsHandler)
	}

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrUpgradeRequired
	})

	s.app = app
	return s
}

// App returns the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr())
}

// Listener serves on ln until Shutdown.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and cancels running sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// upgrade hands WebSocket upgrade requests to the session handler after the
// token check. Plain HTTP requests continue to the routes.
func (s *Server) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	if s.verifier.Enabled() {
		token := auth.TokenFrom(c.Query("token"), c.Get(fiber.HeaderAuthorization))
		sub, err := s.verifier.Verify(token)
		if err != nil {
			s.log.WithError(err).WithField("remote", c.IP()).Warn("rejected upgrade")
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		c.Locals(localSubject, sub)
	}
	c.Locals(localPath, c.Path())
	return s.serveWS(c)
}

func (s *Server) handle(ws *websocket.Conn) {
	defer ws.Close()

	path, _ := ws.Locals(localPath).(string)
	if path == "" {
		path = "?"
	}
	fields := logrus.Fields{
		"remote": ws.RemoteAddr().String(),
		"path":   path,
	}
	if sub, ok := ws.Locals(localSubject).(string); ok && sub != "" {
		fields["subject"] = sub
	}
	log := s.log.WithFields(fields)
	log.Info("Client connected")

	if path != s.cfg.Server.Path {
		log.Warnf("Unexpected path %s, expected %s", path, s.cfg.Server.Path)
		s.metrics.PathMismatch()
	}

	sess := session.New(ws, s.rec, session.Options{
		Config:     s.cfg.StreamConfig(),
		QueueDepth: s.cfg.Server.AudioQueueDepth,
		Metrics:    s.metrics,
		Logger:     log,
	})
	if err := sess.Run(s.ctx); err != nil {
		log.WithError(err).Debug("session ended with error")
	}
	log.Info("Client disconnected")
}
