package watcher

import "time"

// EventType is the kind of change observed for a path.
type EventType string

const (
	// EventAdd indicates a new regular file appeared.
	EventAdd EventType = "add"
	// EventUnlink indicates a file was removed or renamed away. With IsDir
	// set, everything below a watched directory went with it.
	EventUnlink EventType = "unlink"
	// EventChange indicates the contents of an existing file changed.
	EventChange EventType = "change"
)

// Event is one change notification. Path is absolute.
type Event struct {
	Type  EventType `json:"type"`
	Path  string    `json:"path"`
	IsDir bool      `json:"is_dir,omitempty"`
}

// Callback receives events for a subscription. Calls for one subscription
// are serialized.
type Callback func(Event)

// Handle identifies a subscription returned by Watch.
type Handle uint64

// Watcher is the change notification collaborator.
type Watcher interface {
	// Watch subscribes cb to changes under path.
	Watch(path string, opts Options, cb Callback) (Handle, error)

	// Unwatch ends a subscription. Unknown handles are a no-op.
	Unwatch(h Handle) error

	// Close ends every subscription. Safe to call multiple times.
	Close() error
}

// Options configures one subscription.
type Options struct {
	// Persistent keeps the subscription open until Unwatch. When false the
	// subscription ends after its first delivered batch.
	Persistent bool

	// IgnoreInitial suppresses add events for files that already exist
	// when the subscription starts.
	IgnoreInitial bool

	// Depth is how many directory levels below the root are watched.
	// 0 watches the root only; a negative value means unlimited.
	Depth int

	// Debounce is the coalescing window. Default: 200ms
	Debounce time.Duration

	// IgnoredNames are directory or file names never reported, on any path
	// segment. Names starting with "." are always ignored.
	IgnoredNames []string
}

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}
