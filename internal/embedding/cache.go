package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

var ErrInvalidBlob = errors.New("embedding: invalid vector blob")

// Cache stores vectors keyed by exact text. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]float32
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]float32)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), vec...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = append([]float32(nil), vec...)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cached wraps an Embedder with a Cache. Only misses reach the backend, in
// input order. Cache failures are logged and treated as misses.
type Cached struct {
	next   Embedder
	cache  Cache
	logger *zap.Logger
}

func NewCached(next Embedder, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Dimension() int { return c.next.Dimension() }

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missSlots []int
	for i, text := range texts {
		keys[i] = CacheKey(c.next.Model(), text)

		vec, ok, err := c.cache.Get(ctx, keys[i])
		if err != nil {
			c.logger.Warn("embedding cache lookup failed", zap.Error(err))
		}
		if ok && len(vec) == c.next.Dimension() {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missSlots = append(missSlots, i)
	}

	c.logger.Debug("embedding cache",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)),
	)

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := Check(fresh, len(missTexts), c.next.Dimension()); err != nil {
		return nil, err
	}

	for j, slot := range missSlots {
		out[slot] = fresh[j]
		if err := c.cache.Set(ctx, keys[slot], fresh[j]); err != nil {
			c.logger.Warn("embedding cache store failed", zap.Error(err))
		}
	}

	return out, nil
}

// CacheKey derives the cache key for text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%x", model, sum[:])
}

// EncodeVector packs vec as little-endian float32 values.
func EncodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(x))
	}
	return out
}

// DecodeVector reverses EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, ErrInvalidBlob
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
