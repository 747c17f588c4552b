// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/mia-platform/tabingest/internal/logger"
	"github.com/mia-platform/tabingest/internal/pipeline"
)

type statusResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type datasetResponse struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Running bool   `json:"running"`
}

type runResponse struct {
	Dataset           string `json:"dataset"`
	BatchesProcessed  int    `json:"batchesProcessed"`
	RowsFetched       int    `json:"rowsFetched"`
	RowsAppended      int    `json:"rowsAppended"`
	DuplicatesDropped int    `json:"duplicatesDropped"`
}

func statusRoutes(app *fiber.App, name, version string, options Options) {
	app.Get("/-/healthz", func(c *fiber.Ctx) error {
		return c.JSON(statusResponse{Status: "OK", Name: name, Version: version})
	})

	app.Get("/-/ready", func(c *fiber.Ctx) error {
		if options.Readiness != nil {
			if err := options.Readiness(c.UserContext()); err != nil {
				logger.FromContext(c.UserContext()).WithName(loggerName).Warn("service not ready", "error", err)
				return c.Status(http.StatusServiceUnavailable).JSON(statusResponse{Status: "KO", Name: name, Version: version})
			}
		}
		return c.JSON(statusResponse{Status: "OK", Name: name, Version: version})
	})

	if options.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(options.Metrics))
	}
}

func (s *Server) datasetRoutes(app *fiber.App) {
	datasets := app.Group("/datasets")

	datasets.Get("/", func(c *fiber.Ctx) error {
		response := make([]datasetResponse, 0, len(s.names))
		for _, name := range s.names {
			p := s.pipelines[name]
			response = append(response, datasetResponse{Name: name, State: p.State().String(), Running: p.Running()})
		}
		return c.JSON(response)
	})

	datasets.Post("/:name/runs", func(c *fiber.Ctx) error {
		name := c.Params("name")
		p, found := s.pipelines[name]
		if !found {
			return errorResponse(c, http.StatusNotFound, "dataset "+name+" not found")
		}

		result, err := p.Run(c.UserContext())
		switch {
		case errors.Is(err, pipeline.ErrRunInProgress):
			return errorResponse(c, http.StatusConflict, err.Error())
		case err != nil:
			return errorResponse(c, http.StatusInternalServerError, err.Error())
		}

		return c.JSON(runResponse{
			Dataset:           name,
			BatchesProcessed:  result.BatchesProcessed,
			RowsFetched:       result.RowsFetched,
			RowsAppended:      result.RowsAppended,
			DuplicatesDropped: result.DuplicatesDropped,
		})
	})
}
