// Package http provides the HTTP API for reportd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/radwerk/reportd/internal/generate"
	"github.com/radwerk/reportd/internal/ingest"
	"github.com/radwerk/reportd/internal/vectorstore"
	"go.uber.org/zap"
)

// Ingestor is the write path. Satisfied by ingest.Pipeline.
type Ingestor interface {
	ProcessFile(ctx context.Context, path, collectionHint string, collectionChecked bool) ingest.Outcome
	ProcessDirectory(ctx context.Context, dir, collectionHint string) (ingest.Summary, error)
}

// Querier runs similarity queries. Satisfied by vectorstore.Client.
type Querier interface {
	Query(ctx context.Context, collectionName string, queryTexts []string, nResults int, where map[string]any) ([][]vectorstore.QueryResult, error)
}

// Generator drafts report text. Satisfied by generate.Service.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (string, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes ingestion, query and generation over HTTP.
type Server struct {
	echo      *echo.Echo
	ingestor  Ingestor
	querier   Querier
	generator Generator
	logger    *zap.Logger
	config    Config
}

// NewServer creates the HTTP server with its middleware and routes.
func NewServer(cfg Config, ingestor Ingestor, querier Querier, generator Generator, logger *zap.Logger, metrics *Metrics) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})
	if metrics != nil {
		e.Use(metrics.Middleware())
	}

	s := &Server{
		echo:      e,
		ingestor:  ingestor,
		querier:   querier,
		generator: generator,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/query", s.handleQuery)
	v1.POST("/generate", s.handleGenerate)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// IngestRequest is the request body for POST /api/v1/ingest. Path may name a
// single file or a directory tree.
type IngestRequest struct {
	Path       string `json:"path"`
	Collection string `json:"collection,omitempty"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Outcomes  []ingest.Outcome `json:"outcomes"`
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path field is required")
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("path %s: %v", req.Path, err))
	}

	ctx := c.Request().Context()
	var resp IngestResponse
	if info.IsDir() {
		summary, err := s.ingestor.ProcessDirectory(ctx, req.Path, req.Collection)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		resp = IngestResponse{
			Succeeded: summary.Succeeded,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			Outcomes:  summary.Outcomes,
		}
	} else {
		outcome := s.ingestor.ProcessFile(ctx, req.Path, req.Collection, false)
		resp = IngestResponse{Outcomes: []ingest.Outcome{outcome}}
		switch outcome.Status {
		case ingest.StatusSuccess:
			resp.Succeeded = 1
		case ingest.StatusSkipped:
			resp.Skipped = 1
		case ingest.StatusError:
			resp.Failed = 1
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Where      map[string]any `json:"where,omitempty"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Results []vectorstore.QueryResult `json:"results"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	results, err := s.querier.Query(c.Request().Context(), req.Collection, []string{req.Query}, limit, req.Where)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	resp := QueryResponse{Results: []vectorstore.QueryResult{}}
	if len(results) > 0 {
		resp.Results = results[0]
	}
	return c.JSON(http.StatusOK, resp)
}

// GenerateRequest is the request body for POST /api/v1/generate.
type GenerateRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Terms      string `json:"terms,omitempty"`
	Language   string `json:"language,omitempty"`
}

// GenerateResponse is the response body for POST /api/v1/generate.
type GenerateResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleGenerate(c echo.Context) error {
	if s.generator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "generation is not configured")
	}
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	text, err := s.generator.Generate(c.Request().Context(), generate.Request{
		DocumentID: req.DocumentID,
		Terms:      req.Terms,
		Language:   req.Language,
	})
	if err != nil {
		if errors.Is(err, generate.ErrEmptyRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, GenerateResponse{Text: text})
}

// Start starts the HTTP server and blocks until shutdown or failure.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
