package search

import (
	"sort"
	"strings"

	"github.com/Aman-CERP/pathindex/internal/normalize"
	"github.com/Aman-CERP/pathindex/internal/store"
)

// Match tiers, best first.
const (
	TierExact = iota
	TierPrefix
	TierContains
)

// Tier classifies how entry matches the normalized needle. A name equal
// to the needle with or without its extension is exact, so "config"
// matches "Config.ts" exactly.
func Tier(entry store.FileIndexEntry, needle string) int {
	name := entry.NormalizedName
	switch {
	case name == needle, normalize.Stem(name, entry.Extension) == needle:
		return TierExact
	case strings.HasPrefix(name, needle):
		return TierPrefix
	default:
		return TierContains
	}
}

// Matches reports whether entry's normalized name contains needle. The
// empty needle matches everything.
func Matches(entry store.FileIndexEntry, needle string) bool {
	return strings.Contains(entry.NormalizedName, needle)
}

// Sort orders entries by tier, then original file name, then full path.
func Sort(entries []store.FileIndexEntry, needle string) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := Tier(entries[i], needle), Tier(entries[j], needle)
		if ti != tj {
			return ti < tj
		}
		if entries[i].FileName != entries[j].FileName {
			return entries[i].FileName < entries[j].FileName
		}
		return entries[i].FullPath < entries[j].FullPath
	})
}
