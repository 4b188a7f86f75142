package classifier

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

var testLabels = []string{"BUSINESS", "ENTERTAINMENT", "POLITICS", "SPORTS"}

// testParams returns weights that make each label respond to one vector
// component, so argmax is obvious in tests.
func testParams() (weights, bias []float32, dim int) {
	dim = 4
	weights = make([]float32, len(testLabels)*dim)
	for i := range testLabels {
		weights[i*dim+i] = 2.0
	}
	bias = make([]float32, len(testLabels))
	return weights, bias, dim
}

// buildArtifact serializes a classifier to safetensors bytes the way the
// export script does: header length, JSON header with __metadata__ labels,
// then tensor data.
func buildArtifact(t *testing.T, labels []string, weights, bias []float32, dim int) []byte {
	t.Helper()

	wBytes := len(weights) * 4
	header := map[string]any{
		"__metadata__": map[string]string{"labels": strings.Join(labels, ",")},
		"linear.weight": map[string]any{
			"dtype":        "F32",
			"shape":        []int{len(labels), dim},
			"data_offsets": []int{0, wBytes},
		},
		"linear.bias": map[string]any{
			"dtype":        "F32",
			"shape":        []int{len(labels)},
			"data_offsets": []int{wBytes, wBytes + len(bias)*4},
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON)))
	buf.Write(headerJSON)
	binary.Write(&buf, binary.LittleEndian, weights)
	binary.Write(&buf, binary.LittleEndian, bias)
	return buf.Bytes()
}

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	weights, bias, dim := testParams()
	clf, err := Parse(buildArtifact(t, testLabels, weights, bias, dim))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return clf
}

func TestLoadRoundTrip(t *testing.T) {
	weights, bias, dim := testParams()
	path := filepath.Join(t.TempDir(), "news_classifier.st")
	if err := os.WriteFile(path, buildArtifact(t, testLabels, weights, bias, dim), 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	clf, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(clf.Labels(), testLabels) {
		t.Errorf("labels = %v, want %v", clf.Labels(), testLabels)
	}
	if clf.Dim() != dim {
		t.Errorf("dim = %d, want %d", clf.Dim(), dim)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.st")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestParseCorruptArtifacts(t *testing.T) {
	weights, bias, dim := testParams()
	valid := buildArtifact(t, testLabels, weights, bias, dim)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header length", valid[:4]},
		{"header length exceeds file", append(binary.LittleEndian.AppendUint64(nil, 1<<40), valid[8:]...)},
		{"garbage header", append(binary.LittleEndian.AppendUint64(nil, 4), 'a', 'b', 'c', 'd')},
		{"truncated tensor data", valid[:len(valid)-8]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.data); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParseMissingLabels(t *testing.T) {
	weights, bias, dim := testParams()
	data := buildArtifact(t, testLabels, weights, bias, dim)

	// Rebuild without metadata by corrupting the labels key lookup: use an
	// artifact whose metadata block lacks "labels".
	headerLen := binary.LittleEndian.Uint64(data[:8])
	var header map[string]json.RawMessage
	json.Unmarshal(data[8:8+headerLen], &header)
	header["__metadata__"] = json.RawMessage(`{"exported_by":"newscat"}`)
	newHeader, _ := json.Marshal(header)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(newHeader)))
	buf.Write(newHeader)
	buf.Write(data[8+headerLen:])

	if _, err := Parse(buf.Bytes()); err == nil {
		t.Fatal("expected error for artifact without labels metadata")
	}
}

func TestParseLabelWeightMismatch(t *testing.T) {
	weights, bias, dim := testParams()
	data := buildArtifact(t, append(testLabels, "TECH"), weights, bias, dim)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for label/weight row mismatch")
	}
}

func TestPredictProbaSumsToOne(t *testing.T) {
	clf := testClassifier(t)

	scores, err := clf.PredictProba([]float32{0.1, 0.9, 0.2, 0.3})
	if err != nil {
		t.Fatalf("PredictProba error: %v", err)
	}
	if len(scores) != len(testLabels) {
		t.Fatalf("got %d scores, want %d", len(scores), len(testLabels))
	}

	var sum float64
	for _, label := range testLabels {
		p, ok := scores[label]
		if !ok {
			t.Fatalf("missing score for label %s", label)
		}
		if p < 0 || p > 1 {
			t.Errorf("score for %s = %v, want within [0,1]", label, p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Errorf("scores sum to %v, want 1.0 within 1e-6", sum)
	}
}

func TestPredictLabelIsArgmax(t *testing.T) {
	clf := testClassifier(t)
	vec := []float32{0.1, 0.9, 0.2, 0.3}

	label, err := clf.PredictLabel(vec)
	if err != nil {
		t.Fatalf("PredictLabel error: %v", err)
	}
	if label != "ENTERTAINMENT" {
		t.Errorf("label = %q, want ENTERTAINMENT", label)
	}

	scores, _ := clf.PredictProba(vec)
	for l, p := range scores {
		if p > scores[label] {
			t.Errorf("label %s has higher score %v than predicted %s (%v)", l, p, label, scores[label])
		}
	}
}

func TestPredictDeterministic(t *testing.T) {
	clf := testClassifier(t)
	vec := []float32{0.5, -0.2, 0.7, 0.1}

	first, err := clf.PredictProba(vec)
	if err != nil {
		t.Fatalf("PredictProba error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := clf.PredictProba(vec)
		if err != nil {
			t.Fatalf("PredictProba error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d: scores differ: %v vs %v", i, first, again)
		}
	}
}

func TestPredictDimMismatch(t *testing.T) {
	clf := testClassifier(t)
	if _, err := clf.PredictProba([]float32{1, 2}); err == nil {
		t.Fatal("expected error for wrong input dim")
	}
	if _, err := clf.PredictLabel([]float32{1, 2}); err == nil {
		t.Fatal("expected error for wrong input dim")
	}
}
