package plan

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/conduit-lang/reshape/internal/payload"
	"github.com/conduit-lang/reshape/internal/rules"
)

// DefaultCacheSize is the number of plans kept when no size is configured
const DefaultCacheSize = 128

// Cache reuses compiled plans. Lookups go by the hash of the raw document
// first and by normalized cache key second, so differently-authored documents
// that normalize alike share one plan. Safe for concurrent use.
type Cache struct {
	byContent *lru.Cache
	byKey     *lru.Cache
	hasher    *Hasher
	log       *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a snapshot of cache counters
type Stats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewCache creates a cache holding up to size plans
func NewCache(size int, log *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	byContent, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	byKey, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create plan cache: %w", err)
	}
	return &Cache{byContent: byContent, byKey: byKey, hasher: NewHasher(), log: log}, nil
}

// Get returns the cached plan for raw, compiling it on a miss
func (c *Cache) Get(raw any) *Plan {
	contentHash := c.contentHash(raw)
	if v, ok := c.byContent.Get(contentHash); ok {
		c.hits.Add(1)
		c.log.Debug("plan cache hit", zap.String("content", contentHash[:12]))
		return v.(*Plan)
	}

	compiled := Compile(raw)
	// A document with findings normalizes like its clean twin but reports
	// differently, so only clean plans are shared by key. Twins must also
	// agree on where each rule was authored.
	clean := len(compiled.validation) == 0
	shareKey := compiled.CacheKey() + "|" + rules.Layout(compiled.rules)
	if v, ok := c.byKey.Get(shareKey); ok && clean {
		c.hits.Add(1)
		existing := v.(*Plan)
		c.byContent.Add(contentHash, existing)
		c.log.Debug("plan cache hit by normalized key", zap.String("cacheKey", compiled.CacheKey()[:12]))
		return existing
	}

	c.misses.Add(1)
	c.byContent.Add(contentHash, compiled)
	if clean {
		c.byKey.Add(shareKey, compiled)
	}
	c.log.Debug("plan cache miss", zap.String("cacheKey", compiled.CacheKey()[:12]))
	return compiled
}

// Purge drops every cached plan
func (c *Cache) Purge() {
	c.byContent.Purge()
	c.byKey.Purge()
}

// Stats returns the current counters. Size counts distinct raw documents.
func (c *Cache) Stats() Stats {
	return Stats{Size: c.byContent.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// contentHash keys raw text by its bytes and decoded values by their
// canonical JSON. Plans with validation errors are keyed the same way.
func (c *Cache) contentHash(raw any) string {
	switch t := raw.(type) {
	case string:
		return c.hasher.HashString("text:" + t)
	case []byte:
		return c.hasher.HashString("text:" + string(t))
	case *rules.ConversionRules:
		if t != nil {
			return c.hasher.HashString("rules:" + t.CanonicalText(false))
		}
	case rules.ConversionRules:
		return c.hasher.HashString("rules:" + t.CanonicalText(false))
	}
	text, err := payload.EncodeJSON(payload.Canonicalize(raw), false)
	if err != nil {
		text = fmt.Sprintf("%#v", raw)
	}
	return c.hasher.HashString("value:" + text)
}
