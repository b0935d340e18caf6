package embedding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedShape marks a provider response that could not be resolved
// into one vector per input. Callers treat it as transient and retry.
var ErrUnrecognizedShape = errors.New("unrecognized embedding response shape")

// resolveEmbeddings normalizes an untrusted provider response body into
// exactly n vectors, one per input, trying recognized shapes in priority
// order:
//
//  1. a JSON array of n items, each coerced independently to a flat vector
//  2. a flat numeric array: the vector itself when n == 1; reshaped into n
//     equal rows when evenly divisible; otherwise broadcast to all n inputs
//     (degraded: the returned broadcast flag is true)
//  3. an object with an "embedding"/"embeddings" field, resolved recursively
//
// Anything else returns ErrUnrecognizedShape.
func resolveEmbeddings(body []byte, n int) (vecs [][]float32, broadcast bool, err error) {
	if n <= 0 {
		return nil, false, fmt.Errorf("resolve embeddings: batch size must be positive, got %d", n)
	}

	var items []json.RawMessage
	if json.Unmarshal(body, &items) == nil {
		// Per-item collection whose length matches the batch.
		if len(items) == n {
			vecs = make([][]float32, 0, n)
			for i, item := range items {
				vec, cerr := coerceVector(item)
				if cerr != nil {
					return nil, false, fmt.Errorf("%w: item %d: %v", ErrUnrecognizedShape, i, cerr)
				}
				vecs = append(vecs, vec)
			}
			return vecs, false, nil
		}

		// Flat numeric array.
		var flat []float32
		if json.Unmarshal(body, &flat) == nil && len(flat) > 0 {
			return resolveFlat(flat, n)
		}

		return nil, false, fmt.Errorf("%w: array of %d items for batch of %d", ErrUnrecognizedShape, len(items), n)
	}

	// Object with an embedding(s) field.
	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"embeddings", "embedding"} {
			if field, ok := obj[key]; ok {
				return resolveEmbeddings(field, n)
			}
		}
	}

	return nil, false, ErrUnrecognizedShape
}

// resolveFlat applies the 1D rules: single vector, even reshape, or broadcast.
func resolveFlat(flat []float32, n int) ([][]float32, bool, error) {
	if n == 1 {
		return [][]float32{flat}, false, nil
	}
	if len(flat)%n == 0 {
		dim := len(flat) / n
		vecs := make([][]float32, n)
		for i := 0; i < n; i++ {
			vecs[i] = flat[i*dim : (i+1)*dim]
		}
		return vecs, false, nil
	}
	// Last resort: repeat the single vector for every input.
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = flat
	}
	return vecs, true, nil
}

// coerceVector flattens a single response item (vector, nested array, or
// object with an embedding field) into a flat vector.
func coerceVector(item json.RawMessage) ([]float32, error) {
	var vec []float32
	if json.Unmarshal(item, &vec) == nil {
		return vec, nil
	}

	var nested []json.RawMessage
	if json.Unmarshal(item, &nested) == nil {
		out := make([]float32, 0, len(nested))
		for _, inner := range nested {
			v, err := coerceVector(inner)
			if err != nil {
				return nil, err
			}
			out = append(out, v...)
		}
		return out, nil
	}

	var scalar float32
	if json.Unmarshal(item, &scalar) == nil {
		return []float32{scalar}, nil
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(item, &obj) == nil {
		for _, key := range []string{"embedding", "embeddings"} {
			if field, ok := obj[key]; ok {
				return coerceVector(field)
			}
		}
	}

	return nil, fmt.Errorf("cannot coerce %q to a vector", snippet(item))
}

func snippet(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
