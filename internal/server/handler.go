package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crimson-sun/newscat/internal/model"
)

// errorResponse is the JSON body for client and server errors.
type errorResponse struct {
	Error string `json:"error"`
}

// handleRoot serves GET /, the liveness probe with a fixed body.
func (s *Server) handleRoot(c *gin.Context) {
	s.met.RequestsTotal.WithLabelValues("/", "200").Inc()
	c.JSON(http.StatusOK, gin.H{"Hello": "World"})
}

// handleHealthz reports model readiness.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"labels": len(s.pipe.Labels()),
	})
}

// handlePredict serves POST /predict: validate, infer, record, respond.
// A request either fully succeeds (response plus one log record) or fails
// with no record written.
func (s *Server) handlePredict(c *gin.Context) {
	var req model.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.met.RequestsTotal.WithLabelValues("/predict", strconv.Itoa(http.StatusBadRequest)).Inc()
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	received := time.Now()
	pred, err := s.pipe.Predict(req.Description)
	latency := time.Since(received)
	if err != nil {
		s.log.Error("inference failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		s.met.RequestsTotal.WithLabelValues("/predict", strconv.Itoa(http.StatusInternalServerError)).Inc()
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "inference failed"})
		return
	}

	rec := model.NewLogRecord(received, req, pred, latency)
	if err := s.sink.Write(c.Request.Context(), rec); err != nil {
		s.log.Error("record write failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		s.met.RequestsTotal.WithLabelValues("/predict", strconv.Itoa(http.StatusInternalServerError)).Inc()
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to record prediction"})
		return
	}

	s.met.InferenceDuration.Observe(latency.Seconds())
	s.met.PredictionsTotal.WithLabelValues(pred.Label).Inc()
	s.met.RequestsTotal.WithLabelValues("/predict", strconv.Itoa(http.StatusOK)).Inc()
	c.JSON(http.StatusOK, pred)
}
