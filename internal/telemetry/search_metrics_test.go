package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{500 * time.Microsecond, BucketP1},
		{5 * time.Millisecond, BucketP10},
		{20 * time.Millisecond, BucketP50},
		{99 * time.Millisecond, BucketP100},
		{time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.d))
		})
	}
}

func TestSearchEvent_Kind(t *testing.T) {
	assert.Equal(t, KindBrowse, SearchEvent{Query: "  "}.Kind())
	assert.Equal(t, KindName, SearchEvent{Query: "cafe"}.Kind())
	assert.Equal(t, KindFiltered, SearchEvent{Query: "", Extensions: []string{"go"}}.Kind())
}

func TestTerms_NormalizesAndDropsShort(t *testing.T) {
	assert.Equal(t, []string{"cafe", "ui"}, Terms("Café a UI"))
	assert.Nil(t, Terms(""))
}

func TestSearchMetrics_Record(t *testing.T) {
	// Given: a collector
	m := New(DefaultConfig())

	// When: recording hits, a miss and a repeat
	m.Record(SearchEvent{Query: "Café", Results: 3, Latency: time.Millisecond})
	m.Record(SearchEvent{Query: "cafe", Results: 3, Latency: time.Millisecond})
	m.Record(SearchEvent{Query: "zzz", Results: 0, Latency: 20 * time.Millisecond})
	m.Record(SearchEvent{Query: "", Results: 10})

	// Then: the snapshot reflects every event
	s := m.Snapshot()
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.RepeatCount, "accents and case do not make a new query")
	assert.Equal(t, int64(3), s.ByKind[KindName])
	assert.Equal(t, int64(1), s.ByKind[KindBrowse])
	assert.Equal(t, int64(1), s.Latency[BucketP50])
	assert.Equal(t, []string{"zzz"}, s.ZeroResultQueries)
	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "cafe", Count: 2}, s.TopTerms[0])
	assert.InDelta(t, 25.0, s.ZeroResultPercentage(), 0.001)
}

func TestSearchMetrics_ZeroResultsBounded(t *testing.T) {
	// Given: room for two zero-result queries
	m := New(Config{ZeroResultsCapacity: 2})

	// When: three queries miss
	for _, q := range []string{"a1", "a2", "a3"} {
		m.Record(SearchEvent{Query: q})
	}

	// Then: the oldest is evicted
	assert.Equal(t, []string{"a2", "a3"}, m.Snapshot().ZeroResultQueries)
}

func TestSearchMetrics_NilSafe(t *testing.T) {
	var m *SearchMetrics

	assert.NotPanics(t, func() { m.Record(SearchEvent{Query: "x"}) })
	assert.Nil(t, m.Snapshot())
}

func TestSearchMetrics_Concurrent(t *testing.T) {
	m := New(DefaultConfig())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				m.Record(SearchEvent{Query: fmt.Sprintf("q%d-%d", i, j), Results: j % 2})
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(800), s.TotalQueries)
	assert.Equal(t, int64(400), s.ZeroResultCount)
}

func TestSnapshot_ZeroResultPercentageEmpty(t *testing.T) {
	assert.Zero(t, New(DefaultConfig()).Snapshot().ZeroResultPercentage())
}
