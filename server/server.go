package server

import (
	"context"
	"net/http"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/table/sqltable"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the cowork-tables server
type Server struct {
	db     *sqltable.DB
	echo   *echo.Echo
	tokens *tokenCache
}

// New creates a server over an open database and runs its migrations
func New(db *sqltable.DB) (*Server, error) {
	s := &Server{
		db:     db,
		tokens: newTokenCache(),
	}

	// Run migrations
	if err := s.migrate(); err != nil {
		return nil, err
	}

	// Setup Echo
	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Custom logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			// Process request
			err := next(c)

			// Log response
			res := c.Response()
			logger.Info("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)),
				logger.F("duration", time.Since(start).String()))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1, every endpoint needs a token
	api := e.Group("/api/v1")
	api.Use(s.authMiddleware)

	wb := api.Group("/workbooks/:wb")
	wb.POST("/sheets", s.handleAddSheet)
	wb.GET("/sheets/:sheet", s.handleGetSheet)
	wb.PUT("/sheets/:sheet/header", s.handleResetSheet)
	wb.POST("/sheets/:sheet/rows", s.handleAppendRow)
	wb.PUT("/sheets/:sheet/rows/:row", s.handleUpdateRow)
	wb.DELETE("/sheets/:sheet/rows/:row", s.handleDeleteRow)

	s.echo = e
}

// Close closes the database connection
func (s *Server) Close() error {
	return s.db.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	logger.Info("Table server listening", logger.F("addr", addr), logger.F("driver", s.db.Driver()))
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
