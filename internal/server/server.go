// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/tabingest/internal/info"
	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/pipeline"
)

const (
	loggerName = "tabingest:server"
)

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
	ErrDuplicatedName = errors.New("duplicated dataset name")
)

// ReadinessCheck reports an error when a dependency of the service cannot be reached.
type ReadinessCheck func(ctx context.Context) error

// Options are the optional collaborators of the Server.
type Options struct {
	// Metrics is mounted on /-/metrics when set.
	Metrics http.Handler
	// Readiness is called by /-/ready, the service is always ready when nil.
	Readiness ReadinessCheck
}

type Server struct {
	Config

	app       *fiber.App
	pipelines map[string]*pipeline.Pipeline
	names     []string
}

// NewServer returns a server, configured from the environment, that runs the pipelines on demand.
func NewServer(ctx context.Context, pipelines []*pipeline.Pipeline, options Options) (*Server, error) {
	cfg, err := LoadServerConfig()
	if err != nil {
		return nil, err
	}

	return newServer(ctx, *cfg, pipelines, options)
}

func newServer(ctx context.Context, cfg Config, pipelines []*pipeline.Pipeline, options Options) (*Server, error) {
	byName := make(map[string]*pipeline.Pipeline, len(pipelines))
	names := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		if _, found := byName[p.DatasetID()]; found {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatedName, p.DatasetID())
		}
		byName[p.DatasetID()] = p
		names = append(names, p.DatasetID())
	}
	slices.Sort(names)

	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
		Immutable:             true,
	})
	log := logger.FromContext(ctx).WithName(loggerName)
	app.Use(logger.RequestMiddlewareLogger(log, []string{"/-/"}))

	s := &Server{
		Config:    cfg,
		app:       app,
		pipelines: byName,
		names:     names,
	}

	statusRoutes(app, info.AppName, info.Version, options)
	s.datasetRoutes(app)
	return s, nil
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)
}

func (s *Server) Start() error {
	if err := s.app.Listen(s.Address()); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *Server) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *Server) StartAsync(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}

func errorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"statusCode": status,
		"error":      http.StatusText(status),
		"message":    message,
	})
}
