package risk

import (
	"github.com/faireye-hive/hive-cache/internal/models"
	"github.com/faireye-hive/hive-cache/internal/observability"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached assessments.
const DefaultCacheSize = 10000

// CachedEngine memoizes the flag-independent part of an assessment by
// (post id, author). The flag contribution is applied on every read, so
// toggling a flag never serves a stale tier. Purge must be called whenever
// the post set, and therefore the author statistics, is replaced.
type CachedEngine struct {
	*Engine
	cache *lru.Cache[string, Assessment]
}

// NewCachedEngine wraps engine with an LRU of at most size entries.
func NewCachedEngine(engine *Engine, size int) (*CachedEngine, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, Assessment](size)
	if err != nil {
		return nil, err
	}
	return &CachedEngine{Engine: engine, cache: c}, nil
}

// Score returns the assessment of p, computing the base part at most once
// per cache generation.
func (c *CachedEngine) Score(p *models.Post, in Inputs) Assessment {
	key := p.ID + "_" + p.Author
	base, ok := c.cache.Get(key)
	if ok {
		observability.RiskCacheLookups.WithLabelValues("hit").Inc()
	} else {
		observability.RiskCacheLookups.WithLabelValues("miss").Inc()
		base = c.base(p, in.Author, in.Blacklisted)
		c.cache.Add(key, base)
	}

	a := Assessment{Score: base.Score, Reasons: append([]string(nil), base.Reasons...)}
	if in.Flagged {
		a.add(PointsFlagged, "flagged")
	}
	a.Tier = c.Tier(a.Score)
	observability.RiskEvaluations.WithLabelValues(string(a.Tier)).Inc()
	return a
}

// Purge drops every cached assessment.
func (c *CachedEngine) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached assessments.
func (c *CachedEngine) Len() int {
	return c.cache.Len()
}
