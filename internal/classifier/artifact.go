package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Artifact tensor names. The classifier is exported as a safetensors file
// holding the linear layer of a fitted logistic regression, with the label
// names carried in the header metadata.
const (
	weightTensor = "linear.weight"
	biasTensor   = "linear.bias"
	labelsKey    = "labels"
)

// Load reads a serialized classifier artifact from disk. A missing or
// corrupt artifact is a startup-fatal error for the caller.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	return Parse(data)
}

// Parse decodes a classifier artifact from raw safetensors bytes:
// an 8-byte LE header length, a JSON header describing the tensors (plus a
// __metadata__ block with the comma-separated label list), then tensor data.
func Parse(data []byte) (*Classifier, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("classifier: artifact too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return nil, fmt.Errorf("classifier: header length %d exceeds artifact size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("classifier: failed to parse header: %w", err)
	}

	labels, err := parseLabels(header)
	if err != nil {
		return nil, err
	}

	weights, wShape, err := readTensor(data, header, weightTensor, int(headerLen))
	if err != nil {
		return nil, err
	}
	if len(wShape) != 2 {
		return nil, fmt.Errorf("classifier: expected 2D %s, got shape %v", weightTensor, wShape)
	}

	bias, bShape, err := readTensor(data, header, biasTensor, int(headerLen))
	if err != nil {
		return nil, err
	}
	if len(bShape) != 1 {
		return nil, fmt.Errorf("classifier: expected 1D %s, got shape %v", biasTensor, bShape)
	}

	if wShape[0] != len(labels) {
		return nil, fmt.Errorf("classifier: %s rows %d != %d labels", weightTensor, wShape[0], len(labels))
	}
	if bShape[0] != len(labels) {
		return nil, fmt.Errorf("classifier: %s size %d != %d labels", biasTensor, bShape[0], len(labels))
	}

	return New(labels, weights, bias, wShape[1])
}

// parseLabels extracts the label list from the __metadata__ header block.
func parseLabels(header map[string]json.RawMessage) ([]string, error) {
	raw, ok := header["__metadata__"]
	if !ok {
		return nil, fmt.Errorf("classifier: artifact missing __metadata__ header")
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("classifier: failed to parse __metadata__: %w", err)
	}
	joined, ok := meta[labelsKey]
	if !ok || joined == "" {
		return nil, fmt.Errorf("classifier: artifact metadata missing %q", labelsKey)
	}

	labels := strings.Split(joined, ",")
	for i, l := range labels {
		labels[i] = strings.TrimSpace(l)
		if labels[i] == "" {
			return nil, fmt.Errorf("classifier: empty label at position %d", i)
		}
	}
	return labels, nil
}

// readTensor extracts one F32 tensor's data and shape from the artifact.
func readTensor(data []byte, header map[string]json.RawMessage, name string, headerLen int) ([]float32, []int, error) {
	raw, ok := header[name]
	if !ok {
		return nil, nil, fmt.Errorf("classifier: tensor %q not found in header", name)
	}

	var meta struct {
		Dtype       string `json:"dtype"`
		Shape       []int  `json:"shape"`
		DataOffsets [2]int `json:"data_offsets"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, nil, fmt.Errorf("classifier: failed to parse %q metadata: %w", name, err)
	}
	if meta.Dtype != "F32" {
		return nil, nil, fmt.Errorf("classifier: %q: expected dtype F32, got %s", name, meta.Dtype)
	}

	numFloats := 1
	for _, d := range meta.Shape {
		if d <= 0 {
			return nil, nil, fmt.Errorf("classifier: %q: invalid shape %v", name, meta.Shape)
		}
		numFloats *= d
	}

	dataStart := 8 + headerLen + meta.DataOffsets[0]
	dataEnd := 8 + headerLen + meta.DataOffsets[1]
	if dataEnd-dataStart != numFloats*4 {
		return nil, nil, fmt.Errorf("classifier: %q: data size %d doesn't match shape %v",
			name, dataEnd-dataStart, meta.Shape)
	}
	if dataEnd > len(data) || dataStart < 8+headerLen {
		return nil, nil, fmt.Errorf("classifier: %q: data range [%d:%d] outside artifact",
			name, dataStart, dataEnd)
	}

	floats := make([]float32, numFloats)
	for i := range floats {
		bits := binary.LittleEndian.Uint32(data[dataStart+i*4 : dataStart+i*4+4])
		floats[i] = math.Float32frombits(bits)
	}
	return floats, meta.Shape, nil
}
