// Package server wires the inference pipeline, prediction record sink, and
// metrics behind the HTTP API.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crimson-sun/newscat/internal/metrics"
	"github.com/crimson-sun/newscat/internal/pipeline"
	"github.com/crimson-sun/newscat/internal/record"
)

// Server holds the HTTP layer's dependencies.
type Server struct {
	router *gin.Engine
	pipe   *pipeline.Pipeline
	sink   record.Sink
	log    *zap.Logger
	met    *metrics.Metrics
}

// New creates a Server and registers its routes and middleware.
func New(pipe *pipeline.Pipeline, sink record.Sink, logger *zap.Logger, met *metrics.Metrics) *Server {
	s := &Server{
		router: gin.New(),
		pipe:   pipe,
		sink:   sink,
		log:    logger,
		met:    met,
	}

	s.router.Use(RequestID())
	s.router.Use(Logger(logger))
	s.router.Use(Recovery(logger))
	s.router.Use(cors.Default())

	s.router.GET("/", s.handleRoot)
	s.router.POST("/predict", s.handlePredict)
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(met.Handler()))

	return s
}

// Handler returns the router as an http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
