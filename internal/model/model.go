package model

import "time"

// TimestampLayout is the wall-clock format used in prediction log records.
const TimestampLayout = "2006:01:02 15:04:05"

// Request is a news item submitted for category prediction.
// Only Description feeds the model; the remaining fields are recorded
// alongside the prediction for traceability.
type Request struct {
	Source      string `json:"source" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// Prediction holds the classifier output for a single request.
// Scores maps every known label to its probability (summing to 1);
// Label is the argmax of Scores.
type Prediction struct {
	Scores map[string]float64 `json:"scores"`
	Label  string             `json:"label"`
}

// LogRecord is one line of the append-only prediction log: the served
// request/response pair plus the time it took to serve it.
type LogRecord struct {
	Timestamp  string     `json:"timestamp"`
	Request    Request    `json:"request"`
	Prediction Prediction `json:"prediction"`
	LatencyMS  float64    `json:"latency_ms"`
}

// NewLogRecord builds a LogRecord stamped with the given receive time.
func NewLogRecord(received time.Time, req Request, pred Prediction, latency time.Duration) LogRecord {
	return LogRecord{
		Timestamp:  received.Format(TimestampLayout),
		Request:    req,
		Prediction: pred,
		LatencyMS:  float64(latency.Microseconds()) / 1000.0,
	}
}
