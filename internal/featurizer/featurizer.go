package featurizer

import "fmt"

// Featurizer converts raw text into a fixed-size embedding vector.
// Implementations hold no mutable state after construction and are safe
// for concurrent use.
type Featurizer interface {
	Transform(text string) ([]float32, error)
	Dim() int
	Close() error
}

// ONNXFeaturizer runs a pretrained BERT-style sentence-embedding model
// locally through ONNX Runtime. The full path for one text is:
// tokenize → ONNX inference → attention-masked mean pooling → L2 normalize.
type ONNXFeaturizer struct {
	session *onnxSession
	tok     *tokenizer
}

// New creates an ONNXFeaturizer from an ONNX model file and a WordPiece
// vocab.txt. Loading is expensive; create once at startup and share.
func New(modelPath, vocabPath string) (*ONNXFeaturizer, error) {
	sess, err := newONNXSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("featurizer: %w", err)
	}

	tok, err := newTokenizer(vocabPath)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("featurizer: %w", err)
	}

	return &ONNXFeaturizer{session: sess, tok: tok}, nil
}

// Dim returns the embedding dimensionality reported by the model.
func (f *ONNXFeaturizer) Dim() int {
	return int(f.session.embedDim)
}

// Transform produces the embedding vector for a single text.
func (f *ONNXFeaturizer) Transform(text string) ([]float32, error) {
	seq := f.tok.tokenize(text)

	hidden, err := f.session.infer(seq.inputIDs, seq.attentionMask, seq.len())
	if err != nil {
		return nil, fmt.Errorf("featurizer: %w", err)
	}

	pooled := meanPool(hidden, seq.attentionMask, seq.len(), f.session.embedDim)
	l2Normalize(pooled)
	return pooled, nil
}

// Close releases ONNX Runtime resources.
func (f *ONNXFeaturizer) Close() error {
	if f.session != nil {
		return f.session.close()
	}
	return nil
}
