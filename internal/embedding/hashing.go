package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashingDimension = 384

// Hashing is a local feature-hashing embedder. Each lower-cased word and
// adjacent word pair is hashed into one of dim buckets with a signed weight,
// and the result is L2-normalised. It needs no network and is deterministic.
type Hashing struct {
	dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Dimension() int { return h.dim }

func (h *Hashing) Model() string { return fmt.Sprintf("hashing-%d", h.dim) }

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *Hashing) vector(text string) []float32 {
	acc := make([]float64, h.dim)

	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(acc, tok, 1)
		if i > 0 {
			h.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec
	}
	for i, x := range acc {
		vec[i] = float32(x / norm)
	}
	return vec
}

func (h *Hashing) add(acc []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	bucket := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
