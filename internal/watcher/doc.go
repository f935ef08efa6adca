// Package watcher delivers live add, unlink and change notifications for
// files under a directory tree.
//
// The default implementation, FSWatcher, sits on fsnotify. Each Watch call
// creates an independent subscription with its own depth bound, ignore set
// and debounce window. Rapid events for the same path are coalesced before
// the callback sees them:
//
//	w := watcher.NewFSWatcher(logger)
//	defer w.Close()
//
//	h, err := w.Watch("/path/to/folder", watcher.Options{
//	    Persistent:    true,
//	    IgnoreInitial: true,
//	    Depth:         10,
//	}, func(ev watcher.Event) {
//	    switch ev.Type {
//	    case watcher.EventAdd:
//	    case watcher.EventUnlink:
//	    case watcher.EventChange:
//	    }
//	})
//	...
//	_ = w.Unwatch(h)
package watcher
