// Package cache memoizes extracted slices for the lifetime of a volume.
package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mincslice/internal/models"
)

var (
	hits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mincslice",
		Subsystem: "slice_cache",
		Name:      "hits_total",
		Help:      "Slices served from the cache.",
	}, []string{"axis"})

	misses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mincslice",
		Subsystem: "slice_cache",
		Name:      "misses_total",
		Help:      "Slices extracted because they were not cached.",
	}, []string{"axis"})
)

// RegisterMetrics registers the cache hit and miss counters with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{hits, misses} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

type key struct {
	axis  string
	time  int
	index int
}

// Cache maps (axis, time, index) to a slice. Entries are never evicted.
//
// Cached slices are shared: every hit resets Alpha to 1 and Number to the
// key's index on the stored slice itself, so callers must not hold on to
// per-call state in a returned slice. Volumes key on the physical index.
type Cache struct {
	mu     sync.Mutex
	slices map[key]*models.Slice
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{slices: make(map[key]*models.Slice)}
}

// GetOrCompute returns the cached slice for (axis, time, index), calling
// compute on a miss. Errors from compute are returned and not cached.
func (c *Cache) GetOrCompute(axis string, time, index int, compute func() (*models.Slice, error)) (*models.Slice, error) {
	k := key{axis: axis, time: time, index: index}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slices[k]; ok {
		hits.WithLabelValues(axis).Inc()
		s.Alpha = 1
		s.Number = index
		return s, nil
	}

	misses.WithLabelValues(axis).Inc()
	s, err := compute()
	if err != nil {
		return nil, err
	}
	c.slices[k] = s
	return s, nil
}

// Len returns the number of cached slices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slices)
}
