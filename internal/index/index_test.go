package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remiblancher/easyca/internal/caerr"
)

func openTest(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func TestU_Index_RecordGet(t *testing.T) {
	x := openTest(t)
	notAfter := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, x.Record(Entry{CA: "root", Name: "web", Serial: "0a", Subject: "CN=web", Kind: KindLeaf, NotAfter: notAfter}))

	e, err := x.Get("root", "0a")
	require.NoError(t, err)
	assert.Equal(t, "web", e.Name)
	assert.Equal(t, KindLeaf, e.Kind)
	assert.True(t, notAfter.Equal(e.NotAfter))
	assert.False(t, e.IssuedAt.IsZero())
}

func TestU_Index_GetMissing(t *testing.T) {
	x := openTest(t)
	_, err := x.Get("root", "ff")
	assert.ErrorIs(t, err, caerr.ErrNotFound)
}

func TestU_Index_RecordRequiresKey(t *testing.T) {
	x := openTest(t)
	assert.Error(t, x.Record(Entry{Name: "web"}))
	assert.Error(t, x.Record(Entry{CA: "root", Name: "web"}))
}

func TestU_Index_ListFiltersByCA(t *testing.T) {
	x := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, x.Record(Entry{CA: "root", Name: "b", Serial: "02", IssuedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, x.Record(Entry{CA: "root", Name: "a", Serial: "01", IssuedAt: base.Add(time.Hour)}))
	require.NoError(t, x.Record(Entry{CA: "rootx", Name: "c", Serial: "03", IssuedAt: base}))

	all, err := x.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{all[0].Name, all[1].Name, all[2].Name})

	root, err := x.List("root")
	require.NoError(t, err)
	require.Len(t, root, 2, "a CA whose name extends another must not leak into its listing")
	assert.Equal(t, "a", root[0].Name)

	none, err := x.List("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestU_Index_MarkPromoted(t *testing.T) {
	x := openTest(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, x.Record(Entry{CA: "root", Name: "inter", Serial: "01", Kind: KindSubCA, IssuedAt: base}))
	require.NoError(t, x.Record(Entry{CA: "root", Name: "inter", Serial: "02", Kind: KindSubCA, IssuedAt: base.Add(time.Hour)}))
	require.NoError(t, x.Record(Entry{CA: "root", Name: "inter", Serial: "03", Kind: KindLeaf, IssuedAt: base.Add(2 * time.Hour)}))

	require.NoError(t, x.MarkPromoted("inter"))

	old, err := x.Get("root", "01")
	require.NoError(t, err)
	assert.False(t, old.Promoted)
	latest, err := x.Get("root", "02")
	require.NoError(t, err)
	assert.True(t, latest.Promoted)

	assert.ErrorIs(t, x.MarkPromoted("nobody"), caerr.ErrNotFound)
}

func TestU_Index_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	x, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, x.Record(Entry{CA: "root", Name: "web", Serial: "01"}))
	require.NoError(t, x.Close())

	x, err = Open(path)
	require.NoError(t, err)
	defer x.Close()
	entries, err := x.List("")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestU_Index_OpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "index.db"))
	assert.ErrorIs(t, err, caerr.ErrStorage)
}
