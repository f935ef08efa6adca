// Package telemetry keeps in-process search statistics: query volume,
// latency, the most searched terms and recent queries that found nothing.
// Nothing leaves the machine and nothing is persisted.
package telemetry

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/pathindex/internal/normalize"
)

// QueryKind classifies a search request.
type QueryKind string

const (
	// KindBrowse is an empty query listing files.
	KindBrowse QueryKind = "browse"
	// KindName matches file names.
	KindName QueryKind = "name"
	// KindFiltered matches names with an extension filter.
	KindFiltered QueryKind = "filtered"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1    LatencyBucket = "p1"    // <1ms
	BucketP10   LatencyBucket = "p10"   // 1-10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP1000 LatencyBucket = "p1000" // >=100ms
)

// LatencyToBucket converts a duration to its histogram bucket. Path
// search answers from an indexed column, so buckets sit lower than for
// content search.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketP1000
	}
}

// SearchEvent is one completed search.
type SearchEvent struct {
	Query      string
	Extensions []string
	Results    int
	Latency    time.Duration
}

// Kind classifies the event.
func (e SearchEvent) Kind() QueryKind {
	switch {
	case strings.TrimSpace(e.Query) == "" && len(e.Extensions) == 0:
		return KindBrowse
	case len(e.Extensions) > 0:
		return KindFiltered
	default:
		return KindName
	}
}

// ring is a fixed-capacity FIFO; the oldest item is evicted when full.
// Callers hold SearchMetrics.mu.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) add(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// list returns items oldest first.
func (r *ring[T]) list() []T {
	out := make([]T, 0, r.size)
	if r.size < len(r.items) {
		return append(out, r.items[:r.size]...)
	}
	out = append(out, r.items[r.head:]...)
	return append(out, r.items[:r.head]...)
}

// Terms splits a query into normalized terms of at least two runes, the
// shortest query worth ranking.
func Terms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(normalize.Name(query)) {
		if len([]rune(w)) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	TotalQueries      int64                   `json:"total_queries"`
	ZeroResultCount   int64                   `json:"zero_result_count"`
	RepeatCount       int64                   `json:"repeat_count"`
	ByKind            map[QueryKind]int64     `json:"by_kind"`
	Latency           map[LatencyBucket]int64 `json:"latency"`
	TopTerms          []TermCount             `json:"top_terms"`
	ZeroResultQueries []string                `json:"zero_result_queries"`
	Since             time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the bounded collections.
type Config struct {
	TopTermsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
}

// DefaultConfig returns the default capacities.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   50,
		RecentQueriesCapacity: 500,
	}
}

// SearchMetrics aggregates search events. It is safe for concurrent use.
type SearchMetrics struct {
	mu sync.Mutex

	total   int64
	zero    int64
	repeats int64
	byKind  map[QueryKind]int64
	latency map[LatencyBucket]int64

	terms       *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	zeroQueries *ring[string]
	since       time.Time
}

// New creates an empty collector.
func New(cfg Config) *SearchMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	// lru.New only fails on a non-positive size.
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &SearchMetrics{
		byKind:      make(map[QueryKind]int64),
		latency:     make(map[LatencyBucket]int64),
		terms:       terms,
		recent:      recent,
		zeroQueries: newRing[string](cfg.ZeroResultsCapacity),
		since:       time.Now(),
	}
}

// Record adds one search. A nil collector ignores it.
func (m *SearchMetrics) Record(e SearchEvent) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.byKind[e.Kind()]++
	m.latency[LatencyToBucket(e.Latency)]++

	for _, t := range Terms(e.Query) {
		n, _ := m.terms.Get(t)
		m.terms.Add(t, n+1)
	}

	if e.Results == 0 {
		m.zero++
		if q := strings.TrimSpace(e.Query); q != "" {
			m.zeroQueries.add(q)
		}
	}

	key := normalize.Name(strings.TrimSpace(e.Query)) + "\x00" + strings.Join(e.Extensions, ",")
	if _, seen := m.recent.Get(key); seen {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot copies the current metrics. Top terms are sorted by count,
// then term.
func (m *SearchMetrics) Snapshot() *Snapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Snapshot{
		TotalQueries:      m.total,
		ZeroResultCount:   m.zero,
		RepeatCount:       m.repeats,
		ByKind:            make(map[QueryKind]int64, len(m.byKind)),
		Latency:           make(map[LatencyBucket]int64, len(m.latency)),
		TopTerms:          make([]TermCount, 0, m.terms.Len()),
		ZeroResultQueries: m.zeroQueries.list(),
		Since:             m.since,
	}
	for k, v := range m.byKind {
		s.ByKind[k] = v
	}
	for k, v := range m.latency {
		s.Latency[k] = v
	}
	for _, t := range m.terms.Keys() {
		if n, ok := m.terms.Peek(t); ok {
			s.TopTerms = append(s.TopTerms, TermCount{Term: t, Count: n})
		}
	}
	slices.SortFunc(s.TopTerms, func(a, b TermCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Term, b.Term)
	})
	return s
}
