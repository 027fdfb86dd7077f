// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the frame codec and the IR link over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

// Transmitter sends a state to the air conditioner
type Transmitter interface {
	TransmitState(ctx context.Context, c aircode.Controller, repeat uint8) (link.TransmitResult, error)
}

// Options configures a Server
type Options struct {
	Addr    string
	Variant aircode.Variant

	// Transmitter is nil when no bridge is connected
	Transmitter Transmitter

	// Presets are named states that can be transmitted by name
	Presets map[string]statefile.Document

	// TransmitTimeout bounds each transmit request
	TransmitTimeout time.Duration
}

// Server is the HTTP API
type Server struct {
	opts   Options
	server *http.Server
	router *gin.Engine
}

// NewServer creates the server and registers its routes
func NewServer(opts Options) *Server {
	if opts.Variant == nil {
		opts.Variant = aircode.Structured
	}
	if opts.TransmitTimeout == 0 {
		opts.TransmitTimeout = 5 * time.Second
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	s := &Server{
		opts:   opts,
		router: router,
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/encode", s.encode)
		v1.POST("/decode", s.decode)
		v1.POST("/transmit", s.transmit)

		presets := v1.Group("/presets")
		{
			presets.GET("", s.listPresets)
			presets.POST("/:name/transmit", s.transmitPreset)
		}
	}
}

// requestLogger logs each request through the zap logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// ListenAndServe serves until Shutdown. Returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	logging.Info("HTTP API listening", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("HTTP API stopping")
	return s.server.Shutdown(ctx)
}
