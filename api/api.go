package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TFMV/mongoload/config"
	"github.com/TFMV/mongoload/metrics"
	"github.com/TFMV/mongoload/pkg/core"
	"github.com/TFMV/mongoload/version"
)

// RunFunc executes one benchmark with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config) (metrics.BenchmarkReport, error)

// HistoryReader lists stored reports.
type HistoryReader interface {
	Get(runID string) (metrics.BenchmarkReport, error)
	List(limit int) ([]metrics.BenchmarkReport, error)
}

// ServerOptions configure the HTTP server.
type ServerOptions struct {
	Port    string
	Prefork bool

	// Config is the base configuration requests override.
	Config *config.Config

	// Run starts a benchmark. Nil disables POST /runs.
	Run RunFunc

	// History serves GET /runs. Nil disables it.
	History HistoryReader

	Logger *zap.Logger
}

// RunRequest holds the overrides accepted by POST /runs.
type RunRequest struct {
	TargetCount *int             `json:"target_count,omitempty"`
	Mode        *core.InsertMode `json:"mode,omitempty"`
	Concurrency *int             `json:"concurrency,omitempty"`
	BatchSize   *int             `json:"batch_size,omitempty"`
}

// Apply copies the set overrides into cfg.
func (r RunRequest) Apply(cfg *config.Config) {
	if r.TargetCount != nil {
		cfg.Workload.TargetCount = *r.TargetCount
	}
	if r.Mode != nil {
		cfg.Insert.Mode = *r.Mode
	}
	if r.Concurrency != nil {
		cfg.Insert.Concurrency = *r.Concurrency
	}
	if r.BatchSize != nil {
		cfg.Insert.BatchSize = *r.BatchSize
	}
}

// Server holds the Fiber app instance
type Server struct {
	app  *fiber.App
	opts ServerOptions

	// running admits one benchmark at a time.
	running sync.Mutex
}

// NewServer initializes a new Fiber instance
func NewServer(opts ServerOptions) *Server {
	if opts.Port == "" {
		opts.Port = "5555"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		IdleTimeout: 10 * time.Second,
		ReadTimeout: 10 * time.Second,
		// No write timeout: POST /runs answers when the benchmark finishes.
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{app: app, opts: opts}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		info := version.Get()
		return c.JSON(fiber.Map{
			"service": "mongoload API",
			"version": info.Version,
			"build":   info.BuildDate,
			"commit":  info.Commit,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Post("/runs", s.startRun)
	app.Get("/runs", s.listRuns)
	app.Get("/runs/:id", s.getRun)

	return s
}

// GetApp returns the Fiber app for testing.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) startRun(c *fiber.Ctx) error {
	if s.opts.Run == nil || s.opts.Config == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("runs are not enabled"))
	}

	var req RunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
	}

	cfg := *s.opts.Config
	req.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	if !s.running.TryLock() {
		return errorJSON(c, fiber.StatusConflict, errors.New("a benchmark is already running"))
	}
	defer s.running.Unlock()

	rep, err := s.opts.Run(c.UserContext(), &cfg)
	if err != nil {
		s.opts.Logger.Error("Run failed", zap.String("run_id", rep.RunID), zap.Error(err))
		stage, _ := core.StageOf(err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  err.Error(),
			"stage":  stage,
			"report": rep,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(rep)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	if s.opts.History == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("history is not configured"))
	}
	runs, err := s.opts.History.List(c.QueryInt("limit", 20))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	if runs == nil {
		runs = []metrics.BenchmarkReport{}
	}
	return c.JSON(runs)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	if s.opts.History == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("history is not configured"))
	}
	rep, err := s.opts.History.Get(c.Params("id"))
	if errors.Is(err, metrics.ErrRunNotFound) {
		return errorJSON(c, fiber.StatusNotFound, err)
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(rep)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("mongoload API is running", zap.String("port", s.opts.Port))
		errCh <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.opts.Logger.Info("Received shutdown signal, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}

	s.opts.Logger.Info("Server shutdown successfully")
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
