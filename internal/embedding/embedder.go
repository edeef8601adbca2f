// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/job-matcher/internal/apperr"
)

// DefaultTimeout bounds a single call to a remote embedding backend.
const DefaultTimeout = 30 * time.Second

// Role tells what a document holds.
type Role string

const (
	RoleResume     Role = "resume"
	RoleJobPosting Role = "job-posting"
)

// Document is a piece of text to embed.
type Document struct {
	ID   string
	Role Role
	Text string
}

// Embedder generates embedding vectors from text.
//
// Embed must return exactly one vector per input text, in input order, each
// of length Dimension(). Empty strings still get a vector. Identical text
// always yields an identical vector.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Texts returns the bodies of docs in order.
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return texts
}

// Check verifies that vectors holds n vectors of dimension dim.
func Check(vectors [][]float32, n, dim int) error {
	if len(vectors) != n {
		return apperr.DimensionMismatch("embedding: got %d vectors for %d texts", len(vectors), n)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return apperr.DimensionMismatch("embedding: vector %d has dim %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

// RemoteError maps a failed call to a remote backend. The session ctx being
// done is returned as is; everything else, including a call that ran past its
// own timeout, is an upstream failure.
func RemoteError(ctx context.Context, op string, timeout time.Duration, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.UpstreamUnavailable(fmt.Sprintf("%s: no answer within %s", op, timeout), err)
	}
	return apperr.UpstreamUnavailable(op, err)
}
