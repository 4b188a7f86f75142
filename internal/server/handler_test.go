package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crimson-sun/newscat/internal/classifier"
	"github.com/crimson-sun/newscat/internal/metrics"
	"github.com/crimson-sun/newscat/internal/model"
	"github.com/crimson-sun/newscat/internal/pipeline"
	"github.com/crimson-sun/newscat/internal/record"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubFeaturizer maps every text to a fixed BUSINESS-leaning vector unless
// an error is injected.
type stubFeaturizer struct {
	err error
}

func (s *stubFeaturizer) Transform(text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.9, 0.1, 0.1, 0.1}, nil
}

func (s *stubFeaturizer) Dim() int     { return 4 }
func (s *stubFeaturizer) Close() error { return nil }

var testLabels = []string{"BUSINESS", "ENTERTAINMENT", "POLITICS", "SPORTS"}

type testEnv struct {
	srv     *Server
	logPath string
}

func newTestEnv(t *testing.T, feat *stubFeaturizer) testEnv {
	t.Helper()

	dim := 4
	weights := make([]float32, len(testLabels)*dim)
	for i := range testLabels {
		weights[i*dim+i] = 2.0
	}
	clf, err := classifier.New(testLabels, weights, make([]float32, len(testLabels)), dim)
	require.NoError(t, err)

	pipe, err := pipeline.New(feat, clf)
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "logs.out")
	sink, err := record.NewFileSink(logPath)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })

	return testEnv{
		srv:     New(pipe, sink, zap.NewNop(), metrics.New()),
		logPath: logPath,
	}
}

func (e testEnv) records(t *testing.T) []model.LogRecord {
	t.Helper()
	data, err := os.ReadFile(e.logPath)
	require.NoError(t, err)
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	var recs []model.LogRecord
	for _, line := range strings.Split(trimmed, "\n") {
		var rec model.LogRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		recs = append(recs, rec)
	}
	return recs
}

func validBody() []byte {
	b, _ := json.Marshal(model.Request{
		Source:      "bbc",
		URL:         "http://x",
		Title:       "t",
		Description: "stocks rally amid earnings season",
	})
	return b
}

func TestRootAlwaysReturnsGreeting(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		env.srv.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"Hello":"World"}`, w.Body.String())
	}
}

func TestPredictSuccess(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(validBody()))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var pred model.Prediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pred))
	assert.Equal(t, "BUSINESS", pred.Label)
	assert.Len(t, pred.Scores, len(testLabels))

	var sum float64
	for _, v := range pred.Scores {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestPredictAppendsExactlyOneRecord(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(validBody()))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	recs := env.records(t)
	require.Len(t, recs, 1)

	var pred model.Prediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pred))

	rec := recs[0]
	assert.Equal(t, "bbc", rec.Request.Source)
	assert.Equal(t, "stocks rally amid earnings season", rec.Request.Description)
	assert.Equal(t, pred.Label, rec.Prediction.Label)
	assert.Equal(t, pred.Scores, rec.Prediction.Scores)
	assert.GreaterOrEqual(t, rec.LatencyMS, 0.0)
	assert.NotEmpty(t, rec.Timestamp)
}

func TestPredictMissingFieldRejected(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	body, _ := json.Marshal(map[string]string{
		"source": "bbc",
		"url":    "http://x",
		"title":  "t",
		// description missing
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.records(t), "no log record for rejected request")
}

func TestPredictMalformedBodyRejected(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.records(t))
}

func TestPredictInferenceErrorIs500(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{err: errors.New("embedding failed")})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(validBody()))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, env.records(t), "no log record for failed inference")
}

func TestPredictDeterministic(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	var first model.Prediction
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(validBody()))
		req.Header.Set("Content-Type", "application/json")
		env.srv.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var pred model.Prediction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pred))
		if i == 0 {
			first = pred
			continue
		}
		assert.Equal(t, first.Label, pred.Label)
		assert.Equal(t, first.Scores, pred.Scores)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubFeaturizer{})

	// Serve one prediction so counters have samples.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewReader(validBody()))
	req.Header.Set("Content-Type", "application/json")
	env.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/metrics", nil)
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "newscat_http_requests_total")
	assert.Contains(t, w.Body.String(), "newscat_predictions_total")
}
