// Package pipeline composes the featurizer and classifier into a single
// inference call: text in, per-label scores and predicted label out.
package pipeline

import (
	"fmt"

	"github.com/crimson-sun/newscat/internal/classifier"
	"github.com/crimson-sun/newscat/internal/featurizer"
	"github.com/crimson-sun/newscat/internal/model"
)

// Pipeline holds the shared, read-only inference components. Safe for
// concurrent use; inference is a pure read over immutable model state.
type Pipeline struct {
	feat featurizer.Featurizer
	clf  *classifier.Classifier
}

// New creates a Pipeline, verifying that the featurizer output feeds the
// classifier input.
func New(feat featurizer.Featurizer, clf *classifier.Classifier) (*Pipeline, error) {
	if feat.Dim() != clf.Dim() {
		return nil, fmt.Errorf("pipeline: featurizer dim %d != classifier dim %d",
			feat.Dim(), clf.Dim())
	}
	return &Pipeline{feat: feat, clf: clf}, nil
}

// Predict runs one inference over the text and returns both the full score
// map and its argmax label. The label is derived from the same scores that
// are returned, with ties broken by artifact label order.
func (p *Pipeline) Predict(text string) (model.Prediction, error) {
	vec, err := p.feat.Transform(text)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("pipeline: %w", err)
	}

	scores, err := p.clf.PredictProba(vec)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("pipeline: %w", err)
	}

	label := p.clf.Labels()[0]
	for _, l := range p.clf.Labels() {
		if scores[l] > scores[label] {
			label = l
		}
	}
	return model.Prediction{Scores: scores, Label: label}, nil
}

// PredictProba returns the per-label probability map for the text.
func (p *Pipeline) PredictProba(text string) (map[string]float64, error) {
	pred, err := p.Predict(text)
	if err != nil {
		return nil, err
	}
	return pred.Scores, nil
}

// PredictLabel returns the most probable label for the text.
func (p *Pipeline) PredictLabel(text string) (string, error) {
	pred, err := p.Predict(text)
	if err != nil {
		return "", err
	}
	return pred.Label, nil
}

// Labels returns the classifier's known label set.
func (p *Pipeline) Labels() []string {
	return p.clf.Labels()
}

// Close releases featurizer resources.
func (p *Pipeline) Close() error {
	return p.feat.Close()
}
