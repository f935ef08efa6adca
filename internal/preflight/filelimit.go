package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MinFileDescriptors is the minimum open file limit. Every watched
// directory holds a descriptor on platforms without inotify.
const MinFileDescriptors = 1024

// MinWatchesPerFolder is the inotify budget assumed per attached folder.
const MinWatchesPerFolder = 1024

// inotifyWatchesPath holds the per-user inotify watch limit on Linux.
const inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckFileDescriptors checks if the open file limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	limit, err := c.nofile()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit, MinFileDescriptors)
	if limit < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckWatchLimit checks the inotify watch budget against the number of
// attached folders. A short budget only degrades live updates, so the
// check is never critical. It passes trivially off Linux.
func (c *Checker) CheckWatchLimit(folders int) CheckResult {
	result := CheckResult{Name: "watch_limit"}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = "not applicable on " + runtime.GOOS
		return result
	}

	data, err := c.readFile(inotifyWatchesPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot read %s: %v", inotifyWatchesPath, err)
		return result
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unexpected value %q", strings.TrimSpace(string(data)))
		return result
	}

	want := max(folders, 1) * MinWatchesPerFolder
	result.Message = fmt.Sprintf("%d inotify watches (%d folder(s) attached)", limit, folders)
	if limit < want {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Raise it with 'sysctl fs.inotify.max_user_watches=%d'", want*8)
		return result
	}
	result.Status = StatusPass
	return result
}

func openFileLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, err
	}
	return uint64(rl.Cur), nil
}

// nearestExisting walks up from path to the first directory that exists,
// so a data directory can be checked before it is created.
func nearestExisting(path string) string {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		if parent := filepath.Dir(p); parent == p {
			return p
		}
	}
}
