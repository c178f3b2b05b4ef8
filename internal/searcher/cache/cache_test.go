package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"mdsearch/pkg/config"
	"mdsearch/pkg/metrics"
)

func TestBuildKeyNormalizesQuery(t *testing.T) {
	c := New(nil, config.RedisConfig{}, nil)

	a := c.buildKey("Machine  Learning", 20, 0)
	b := c.buildKey("machine learning", 20, 0)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, c.buildKey("machine learning", 10, 0))
	assert.NotEqual(t, a, c.buildKey("machine learning", 20, 20))
	assert.Contains(t, a, keyPrefix)
}

func TestHitMissAccountingUpdatesCollectors(t *testing.T) {
	m := metrics.New()
	c := New(nil, config.RedisConfig{}, m)

	c.recordHit()
	c.recordHit()
	c.recordMiss()

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMissesTotal))
}

func TestHitMissAccountingWithoutCollectors(t *testing.T) {
	c := New(nil, config.RedisConfig{}, nil)

	c.recordMiss()
	c.recordHit()

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}
