// Package preflight checks that the machine can host the index before the
// daemon starts: free disk and write access in the data directory, the
// open file limit, the inotify watch budget and access to every attached
// folder.
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, config.DataDir(), folderPaths)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
