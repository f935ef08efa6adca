// Package normalize folds file names for diacritics-insensitive matching.
package normalize

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stem returns a normalized name without its extension.
func Stem(normalizedName, extension string) string {
	if extension == "" {
		return normalizedName
	}
	return strings.TrimSuffix(normalizedName, "."+extension)
}

// Name lowercases s, decomposes it (NFD) and drops combining marks, so
// "Café.tsx" becomes "cafe.tsx". The result is recomposed (NFC) so
// characters without a base+mark split stay intact.
func Name(s string) string {
	lower := strings.ToLower(s)
	if isASCII(lower) {
		return lower
	}

	// Chained transformers keep state and are not safe for reuse across
	// goroutines, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// Extension returns the folded extension of name without the dot, so
// that Name(name) always ends in "."+Extension(name) when it is non-empty.
// Dotfiles such as ".env" have no extension.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return ""
	}
	return Name(strings.TrimPrefix(ext, "."))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
