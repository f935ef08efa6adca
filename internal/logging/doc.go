// Package logging wires log/slog to a size-rotated JSON log file under
// ~/.pathindex/logs/. Long-running modes (serve, mcp) log to the file
// only; interactive commands may tee to stderr.
package logging
