package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathindex/internal/store"
)

type fixture struct {
	store  *store.SQLiteStore
	engine *Engine
}

func newFixture(t *testing.T, maxResults int) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(store.MemoryPath, store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e, err := NewEngine(s, s, EngineConfig{MaxResults: maxResults})
	require.NoError(t, err)
	return &fixture{store: s, engine: e}
}

// folder attaches dir to project and indexes the given file names in it.
func (f *fixture) folder(t *testing.T, project, dir string, names ...string) *store.ProjectFolder {
	t.Helper()
	ctx := context.Background()
	pf, err := f.store.AddFolder(ctx, project, dir)
	require.NoError(t, err)

	entries := make([]store.FileIndexEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, store.FileIndexEntry{
			ProjectFolderID: pf.ID,
			FileName:        n,
			FullPath:        filepath.Join(dir, n),
			RelativePath:    n,
		})
	}
	require.NoError(t, f.store.InsertChunk(ctx, entries))
	return pf
}

func names(entries []store.FileIndexEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.FileName)
	}
	return out
}

func TestNewEngine_NilDependency(t *testing.T) {
	_, err := NewEngine(nil, nil, EngineConfig{})
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestEngine_Search_RanksExactThenPrefixThenContains(t *testing.T) {
	// Given: three files that all contain "config"
	f := newFixture(t, 0)
	f.folder(t, "/work/app", "/data/a", "myconfig.ts", "config-old.ts", "Config.ts")

	// When: searching "config"
	got, err := f.engine.Search(context.Background(), "config", "")

	// Then: exact beats prefix beats contains
	require.NoError(t, err)
	assert.Equal(t, []string{"Config.ts", "config-old.ts", "myconfig.ts"}, names(got))
}

func TestEngine_Search_IgnoresDiacritics(t *testing.T) {
	// Given: an accented file name
	f := newFixture(t, 0)
	f.folder(t, "/work/app", "/data/a", "Café.tsx", "menu.tsx")

	// When: searching without the accent, and with it
	plain, err := f.engine.Search(context.Background(), "cafe", "")
	require.NoError(t, err)
	accented, err := f.engine.Search(context.Background(), "CAFÉ", "")
	require.NoError(t, err)

	// Then: both find the entry
	assert.Equal(t, []string{"Café.tsx"}, names(plain))
	assert.Equal(t, []string{"Café.tsx"}, names(accented))
	assert.Equal(t, "cafe.tsx", plain[0].NormalizedName)
}

func TestEngine_Search_ProjectScope(t *testing.T) {
	// Given: two projects with overlapping file names
	f := newFixture(t, 0)
	f.folder(t, "/work/app", "/data/a", "readme.md", "app.go")
	f.folder(t, "/work/app", "/data/b", "readme.txt")
	f.folder(t, "/work/other", "/data/c", "readme.rst")

	// When: searching within /work/app
	got, err := f.engine.Search(context.Background(), "readme", "/work/app")

	// Then: only that project's folders contribute
	require.NoError(t, err)
	assert.Equal(t, []string{"readme.md", "readme.txt"}, names(got))
}

func TestEngine_Search_UnknownProject_Empty(t *testing.T) {
	f := newFixture(t, 0)
	f.folder(t, "/work/app", "/data/a", "main.go")

	got, err := f.engine.Search(context.Background(), "main", "/work/none")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_EmptyQuery_BrowsesUpToMaxResults(t *testing.T) {
	// Given: more files than the result cap
	f := newFixture(t, 5)
	var files []string
	for i := 0; i < 12; i++ {
		files = append(files, fmt.Sprintf("file%02d.txt", i))
	}
	f.folder(t, "/work/app", "/data/a", files...)

	// When: browsing with an empty query and via List
	browse, err := f.engine.Search(context.Background(), "", "")
	require.NoError(t, err)
	listed, err := f.engine.List(context.Background(), "/work/app")
	require.NoError(t, err)

	// Then: both return the first five by name
	want := []string{"file00.txt", "file01.txt", "file02.txt", "file03.txt", "file04.txt"}
	assert.Equal(t, want, names(browse))
	assert.Equal(t, want, names(listed))
}

func TestEngine_Search_TruncatesAfterRanking(t *testing.T) {
	// Given: a cap of 2 and the exact match sorting last by name
	f := newFixture(t, 2)
	f.folder(t, "/work/app", "/data/a", "a-log.txt", "b-log.txt", "log.txt")
	f.folder(t, "/work/app", "/data/b", "log")

	// When: searching "log" in the project
	got, err := f.engine.Search(context.Background(), "log", "/work/app")

	// Then: both exact matches survive the cut
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "log.txt"}, names(got))
}

func TestEngine_SearchWithOptions_Extensions(t *testing.T) {
	f := newFixture(t, 0)
	f.folder(t, "/work/app", "/data/a", "button.tsx", "button.css", "Button.TSX", "icon.svg")

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"global", SearchOptions{Extensions: []string{".tsx"}}, []string{"Button.TSX", "button.tsx"}},
		{"project", SearchOptions{ProjectPath: "/work/app", Extensions: []string{"css"}}, []string{"button.css"}},
		{"limit", SearchOptions{Limit: 1, Extensions: []string{"tsx", "css"}}, []string{"Button.TSX"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.SearchWithOptions(context.Background(), "button", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestTier(t *testing.T) {
	e := func(name, ext string) store.FileIndexEntry {
		return store.FileIndexEntry{NormalizedName: name, Extension: ext}
	}
	assert.Equal(t, TierExact, Tier(e("config.ts", "ts"), "config"))
	assert.Equal(t, TierExact, Tier(e("config.ts", "ts"), "config.ts"))
	assert.Equal(t, TierPrefix, Tier(e("config-old.ts", "ts"), "config"))
	assert.Equal(t, TierContains, Tier(e("myconfig.ts", "ts"), "config"))
}
