// Package index provides an exact nearest-neighbour index over embedding
// vectors using squared Euclidean distance.
package index

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/spigell/job-matcher/internal/apperr"
)

// Neighbor is a single query hit.
type Neighbor struct {
	Position int
	Distance float64
}

// Flat is a brute-force index. It is built once and never mutated.
type Flat struct {
	vecs [][]float32
	dim  int
}

// Build copies the vectors into a new index. Every vector must have the
// dimension of the first one. Building from zero vectors yields an empty
// index that fails every query with EmptyIndex.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return &Flat{}, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, apperr.DimensionMismatch("index: zero-length vector at position 0")
	}

	vecs := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, apperr.DimensionMismatch("index: inconsistent vector dims at position %d: %d vs %d", i, len(v), dim)
		}
		vecs[i] = append([]float32(nil), v...)
	}

	return &Flat{vecs: vecs, dim: dim}, nil
}

func (f *Flat) Len() int {
	return len(f.vecs)
}

func (f *Flat) Dim() int {
	return f.dim
}

// Vectors returns a copy of the stored vectors in position order.
func (f *Flat) Vectors() [][]float32 {
	out := make([][]float32, len(f.vecs))
	for i, v := range f.vecs {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

// Query returns up to k neighbours of v ordered by ascending distance, ties
// broken by ascending position. A non-positive k returns every vector.
func (f *Flat) Query(v []float32, k int) ([]Neighbor, error) {
	if len(f.vecs) == 0 {
		return nil, apperr.EmptyIndex("index: query before any vectors were added")
	}
	if len(v) != f.dim {
		return nil, apperr.DimensionMismatch("index: query dim %d != index dim %d", len(v), f.dim)
	}

	hits := make([]Neighbor, len(f.vecs))
	for i, vec := range f.vecs {
		hits[i] = Neighbor{Position: i, Distance: SquaredL2(v, vec)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Position < hits[b].Position
	})

	if k <= 0 || k > len(hits) {
		k = len(hits)
	}

	return hits[:k], nil
}

// SquaredL2 assumes equal lengths; callers check dimensions first.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// MarshalBinary stores dim(uint32), n(uint32), then n*dim float32 values.
func (f *Flat) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8, 8+4*f.dim*len(f.vecs))
	binary.LittleEndian.PutUint32(out[0:4], uint32(f.dim))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(f.vecs)))

	buf := make([]byte, 4)
	for _, vec := range f.vecs {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			out = append(out, buf...)
		}
	}
	return out, nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (f *Flat) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("index: invalid data")
	}
	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	n := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) != 8+4*dim*n {
		return errors.New("index: truncated data")
	}

	off := 8
	vecs := make([][]float32, n)
	for i := range vecs {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vecs[i] = vec
	}

	built, err := Build(vecs)
	if err != nil {
		return err
	}
	*f = *built
	return nil
}
