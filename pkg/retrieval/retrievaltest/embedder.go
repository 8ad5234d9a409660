// Package retrievaltest provides a deterministic embedder and a conformance
// suite that every retrieval.Backend runs in its own tests.
package retrievaltest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

// HashEmbedder maps text to a bag-of-words vector by hashing each lowercased
// word into one of Dim buckets, then normalising. Equal texts embed equally,
// texts sharing words are close.
type HashEmbedder struct {
	Dim   int
	calls atomic.Int64
}

// NewHashEmbedder returns an embedder of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)

	vec := make([]float32, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.Dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// Calls reports how many times Embed ran.
func (e *HashEmbedder) Calls() int64 {
	return e.calls.Load()
}
