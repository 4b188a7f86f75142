// Package classifier implements a pretrained multinomial logistic regression
// over embedding vectors. The model is loaded once from a serialized artifact
// and is immutable afterwards, so a single instance serves all requests
// concurrently without locking.
package classifier

import (
	"fmt"
	"math"
)

// Classifier maps an embedding vector to per-label probabilities.
type Classifier struct {
	labels  []string
	weights []float32 // row-major [len(labels), dim]
	bias    []float32 // [len(labels)]
	dim     int
}

// New creates a Classifier from in-memory parameters. weights is row-major
// with one row of length dim per label; bias has one entry per label.
func New(labels []string, weights, bias []float32, dim int) (*Classifier, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier: no labels")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("classifier: non-positive input dim %d", dim)
	}
	if len(weights) != len(labels)*dim {
		return nil, fmt.Errorf("classifier: weight size %d != %d labels x %d dim",
			len(weights), len(labels), dim)
	}
	if len(bias) != len(labels) {
		return nil, fmt.Errorf("classifier: bias size %d != %d labels", len(bias), len(labels))
	}
	return &Classifier{labels: labels, weights: weights, bias: bias, dim: dim}, nil
}

// Labels returns the known label set, in artifact order.
func (c *Classifier) Labels() []string {
	return c.labels
}

// Dim returns the expected input vector dimensionality.
func (c *Classifier) Dim() int {
	return c.dim
}

// PredictProba returns the probability for every known label. The values
// sum to 1 up to floating-point error.
func (c *Classifier) PredictProba(vec []float32) (map[string]float64, error) {
	logits, err := c.logits(vec)
	if err != nil {
		return nil, err
	}
	probs := softmax(logits)

	scores := make(map[string]float64, len(c.labels))
	for i, label := range c.labels {
		scores[label] = probs[i]
	}
	return scores, nil
}

// PredictLabel returns the most probable label for the vector.
func (c *Classifier) PredictLabel(vec []float32) (string, error) {
	logits, err := c.logits(vec)
	if err != nil {
		return "", err
	}
	best := 0
	for i, l := range logits {
		if l > logits[best] {
			best = i
		}
	}
	return c.labels[best], nil
}

// logits computes the raw linear scores W·x + b.
func (c *Classifier) logits(vec []float32) ([]float64, error) {
	if len(vec) != c.dim {
		return nil, fmt.Errorf("classifier: input dim %d != model dim %d", len(vec), c.dim)
	}

	logits := make([]float64, len(c.labels))
	for i := range c.labels {
		row := c.weights[i*c.dim : (i+1)*c.dim]
		sum := float64(c.bias[i])
		for j, w := range row {
			sum += float64(w) * float64(vec[j])
		}
		logits[i] = sum
	}
	return logits, nil
}

// softmax converts logits to probabilities, shifting by the max logit for
// numerical stability.
func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}

	probs := make([]float64, len(logits))
	var total float64
	for i, l := range logits {
		probs[i] = math.Exp(l - max)
		total += probs[i]
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}
