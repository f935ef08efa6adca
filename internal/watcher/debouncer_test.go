package watcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []Event {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: a single event is added
	d.Add(Event{Type: EventAdd, Path: "/x/a.ts"})

	// Then: the event passes through after the window
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: EventAdd, Path: "/x/a.ts"}, events[0])
}

func TestDebouncer_RepeatedChanges_Coalesce(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50*time.Millisecond, nil)
	defer d.Stop()

	// When: the same file changes several times in a burst
	for i := 0; i < 5; i++ {
		d.Add(Event{Type: EventChange, Path: "/x/a.ts"})
		time.Sleep(5 * time.Millisecond)
	}

	// Then: one change comes out
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, EventChange, events[0].Type)
}

func TestDebouncer_CoalescingRules(t *testing.T) {
	tests := []struct {
		name  string
		first EventType
		then  EventType
		want  EventType
	}{
		{"add then change stays add", EventAdd, EventChange, EventAdd},
		{"change then unlink is unlink", EventChange, EventUnlink, EventUnlink},
		{"unlink then add is change", EventUnlink, EventAdd, EventChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer
			d := NewDebouncer(20*time.Millisecond, nil)
			defer d.Stop()

			// When: two events hit the same path
			d.Add(Event{Type: tt.first, Path: "/x/f.go"})
			d.Add(Event{Type: tt.then, Path: "/x/f.go"})

			// Then: the merged type is emitted
			events := receive(t, d)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Type)
		})
	}
}

func TestDebouncer_AddThenUnlink_NoEvent(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: a file appears and vanishes inside one window
	d.Add(Event{Type: EventAdd, Path: "/x/tmp.swp"})
	d.Add(Event{Type: EventUnlink, Path: "/x/tmp.swp"})

	// Then: nothing is emitted
	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch %v", events)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_DifferentFiles_SortedBatch(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: events for different files arrive
	d.Add(Event{Type: EventUnlink, Path: "/x/c.go"})
	d.Add(Event{Type: EventAdd, Path: "/x/a.go"})
	d.Add(Event{Type: EventChange, Path: "/x/b.go"})

	// Then: one batch ordered by path
	events := receive(t, d)
	assert.Equal(t, []Event{
		{Type: EventAdd, Path: "/x/a.go"},
		{Type: EventChange, Path: "/x/b.go"},
		{Type: EventUnlink, Path: "/x/c.go"},
	}, events)
}

func TestDebouncer_Stop_ClosesOutputAndDropsPending(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(time.Hour, nil)
	d.Add(Event{Type: EventAdd, Path: "/x/a.go"})

	// When: stopped twice
	d.Stop()
	d.Stop()
	d.Add(Event{Type: EventAdd, Path: "/x/b.go"})

	// Then: output is closed and empty
	_, ok := <-d.Output()
	assert.False(t, ok)
}

func TestDebouncer_SlowConsumer_KeepsEveryBatch(t *testing.T) {
	// Given: a debouncer nobody reads from
	d := NewDebouncer(2*time.Millisecond, nil)
	defer d.Stop()

	// When: more batches form than the output buffer holds
	const total = 15
	for i := 0; i < total; i++ {
		d.Add(Event{Type: EventAdd, Path: fmt.Sprintf("/x/%02d.ts", i)})
		time.Sleep(15 * time.Millisecond)
	}

	// Then: every event is still delivered once the consumer catches up
	var paths []string
	for len(paths) < total {
		for _, ev := range receive(t, d) {
			paths = append(paths, ev.Path)
		}
	}
	require.Len(t, paths, total)
	for i := 0; i < total; i++ {
		assert.Equal(t, fmt.Sprintf("/x/%02d.ts", i), paths[i])
	}
}

func TestDebouncer_Stop_ReleasesBlockedFlush(t *testing.T) {
	// Given: a debouncer whose output buffer is full and a flush waiting
	d := NewDebouncer(time.Millisecond, nil)
	for i := 0; i < 11; i++ {
		d.Add(Event{Type: EventAdd, Path: fmt.Sprintf("/x/%02d.ts", i)})
		time.Sleep(10 * time.Millisecond)
	}

	// When: stopped
	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	// Then: Stop returns and the output is closed after the buffered batches
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a pending flush")
	}
	n := 0
	for range d.Output() {
		n++
	}
	assert.LessOrEqual(t, n, 10)
}

func TestDebouncer_UnlinkTwice_KeepsDirectoryFlag(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(20*time.Millisecond, nil)
	defer d.Stop()

	// When: a directory unlink is followed by a plain unlink of the same path
	d.Add(Event{Type: EventUnlink, Path: "/x/sub", IsDir: true})
	d.Add(Event{Type: EventUnlink, Path: "/x/sub"})

	// Then: the merged unlink still marks a directory
	events := receive(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: EventUnlink, Path: "/x/sub", IsDir: true}, events[0])
}
