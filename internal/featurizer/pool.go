package featurizer

import "math"

// meanPool computes attention-mask-weighted mean pooling over the sequence
// dimension of transformer hidden states.
//
// hidden: flat [seqLen * dim] float32 (per-token hidden states)
// mask:   [seqLen] int64 (1 for real tokens, 0 otherwise)
//
// Returns a [dim] float32 vector.
func meanPool(hidden []float32, mask []int64, seqLen, dim int64) []float32 {
	out := make([]float32, dim)

	var count float32
	for s := int64(0); s < seqLen; s++ {
		if mask[s] != 1 {
			continue
		}
		count++
		tokOff := s * dim
		for d := int64(0); d < dim; d++ {
			out[d] += hidden[tokOff+d]
		}
	}
	if count == 0 {
		return out
	}

	inv := 1.0 / count
	for d := int64(0); d < dim; d++ {
		out[d] *= inv
	}
	return out
}

// l2Normalize scales vec in place to unit Euclidean norm. Zero vectors are
// left unchanged.
func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
