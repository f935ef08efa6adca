package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// With debug set, details and the underlying cause are appended.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	pe, ok := as(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(pe.Message)
	sb.WriteString("\n")

	if pe.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(pe.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		for _, k := range sortedKeys(pe.Details) {
			fmt.Fprintf(&sb, "  %s: %s\n", k, pe.Details[k])
		}
		if pe.Cause != nil {
			fmt.Fprintf(&sb, "  cause: %v\n", pe.Cause)
		}
	}

	fmt.Fprintf(&sb, "\n[%s]", pe.Code)
	return sb.String()
}

// LogAttrs formats an error as slog attributes, for use as
// slog.Warn("msg", errors.LogAttrs(err)...).
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	pe, ok := as(err)
	if !ok {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", pe.Code),
		slog.String("error", pe.Message),
		slog.String("severity", string(pe.Severity)),
	}
	if pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}
	for _, k := range sortedKeys(pe.Details) {
		attrs = append(attrs, slog.String("detail_"+k, pe.Details[k]))
	}
	return attrs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
