package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProduct(t *testing.T, db, name, ver, flavor, dir, table string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(db, name), 0o755))
	path := store.VersionFilePath(db, name, version.New(ver))
	existing, _ := store.ReadVersionFile(path, logctx.Discard())
	if existing == nil {
		existing = make(map[string]store.Record)
	}
	existing[flavor] = store.Record{Flavor: flavor, Dir: dir, TableFile: table}
	require.NoError(t, store.WriteVersionFile(path, existing))
}

func TestLoadRescansEmptyDB(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()

	c, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)
	assert.Empty(t, c.Products)
}

func TestLoadFindsDeclaredProduct(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	writeProduct(t, db, "python", "2.5.2", "Linux64", "/opt/python", "/opt/python/ups/python.table")

	c, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)

	p, ok := c.Get("python", "2.5.2")
	require.True(t, ok)
	assert.Equal(t, "/opt/python", p.Dir)
}

func TestLoadGenericFlavorFallback(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	writeProduct(t, db, "toolkit", "1.0", "Generic", "/opt/toolkit", "none")

	c, err := Load(db, "Darwin", userData, logctx.Discard())
	require.NoError(t, err)

	p, ok := c.Get("toolkit", "1.0")
	require.True(t, ok)
	assert.Equal(t, "/opt/toolkit", p.Dir)
}

func TestLoadReusesPersistedCacheWhenFresh(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	writeProduct(t, db, "python", "2.5.2", "Linux64", "/opt/python", "none")

	c1, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)
	_, ok := c1.Get("python", "2.5.2")
	require.True(t, ok)

	// Remove the product files without touching the product dir's
	// mtime footprint tracked by the cache; Load should still see the
	// persisted snapshot rather than silently returning empty, proving
	// it took the "reuse" path rather than rescanning.
	productDir := filepath.Join(db, "python")
	fi, err := os.Stat(productDir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(store.VersionFilePath(db, "python", version.New("2.5.2"))))
	require.NoError(t, os.Chtimes(productDir, fi.ModTime(), fi.ModTime()))

	c2, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)
	_, ok = c2.Get("python", "2.5.2")
	assert.True(t, ok)
}

func TestLoadRescansWhenDBDirMTimeAdvances(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	writeProduct(t, db, "python", "2.5.2", "Linux64", "/opt/python", "none")

	_, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	writeProduct(t, db, "numpy", "1.0", "Linux64", "/opt/numpy", "none")
	// Touch product dir mtime forward explicitly for filesystems with
	// coarse mtime resolution.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(db, "numpy"), future, future))

	c2, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)
	_, ok := c2.Get("numpy", "1.0")
	assert.True(t, ok)
}

func TestPutAndDeleteWriteThrough(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	c, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)

	c.Put(store.Product{Name: "python", Version: version.New("2.6"), Flavor: "Linux64", DB: db, Dir: "/opt/python2.6"})
	_, ok := c.Get("python", "2.6")
	require.True(t, ok)

	// A fresh Load should observe the persisted write.
	c2, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)
	p, ok := c2.Get("python", "2.6")
	require.True(t, ok)
	assert.Equal(t, "/opt/python2.6", p.Dir)

	c.Delete("python", "2.6")
	_, ok = c.Get("python", "2.6")
	assert.False(t, ok)
}

func TestTagIndexRoundTrip(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	c, err := Load(db, "Linux64", userData, logctx.Discard())
	require.NoError(t, err)

	c.PutTag("current", "python", "2.5.2")
	assert.Equal(t, "2.5.2", c.Tags["current"]["python"])

	c.DeleteTag("current", "python")
	_, ok := c.Tags["current"]
	assert.False(t, ok)
}
