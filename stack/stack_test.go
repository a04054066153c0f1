package stack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func declare(t *testing.T, db, name, ver, flavor, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(db, name), 0o755))
	path := store.VersionFilePath(db, name, version.New(ver))
	require.NoError(t, store.WriteVersionFile(path, map[string]store.Record{
		flavor: {Flavor: flavor, Dir: dir, TableFile: "none"},
	}))
}

func TestFindProductFirstHitShadowsLaterRoots(t *testing.T) {
	dbU := t.TempDir()
	dbS := t.TempDir()
	declare(t, dbU, "X", "1", "Linux64", "/u/X-1")
	declare(t, dbS, "X", "1", "Linux64", "/s/X-1")

	s, err := NewFromPath([]string{dbU, dbS}, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	p, ok := s.Get("X", "1")
	require.True(t, ok)
	assert.Equal(t, "/u/X-1", p.Dir)
}

func TestFindProductsDedupsAcrossRoots(t *testing.T) {
	dbU := t.TempDir()
	dbS := t.TempDir()
	declare(t, dbU, "X", "1", "Linux64", "/u/X-1")
	declare(t, dbS, "X", "1", "Linux64", "/s/X-1")

	s, err := NewFromPath([]string{dbU, dbS}, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	products, err := s.FindProducts("X", "", nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "/u/X-1", products[0].Dir)
}

func TestFindProductsOrdersByNameThenVersion(t *testing.T) {
	db := t.TempDir()
	declare(t, db, "python", "2.7", "Linux64", "/opt/python2.7")
	declare(t, db, "python", "3.10", "Linux64", "/opt/python3.10")
	declare(t, db, "numpy", "1.0", "Linux64", "/opt/numpy")

	s, err := NewFromPath([]string{db}, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	products, err := s.FindProducts("", "", nil)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "numpy", products[0].Name)
	assert.Equal(t, "python", products[1].Name)
	assert.Equal(t, "2.7", products[1].Version.String())
	assert.Equal(t, "python", products[2].Name)
	assert.Equal(t, "3.10", products[2].Version.String())
}

func TestFindProductsGlobFilter(t *testing.T) {
	db := t.TempDir()
	declare(t, db, "python2", "2.7", "Linux64", "/opt/python2")
	declare(t, db, "python3", "3.10", "Linux64", "/opt/python3")

	s, err := NewFromPath([]string{db}, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	products, err := s.FindProducts("python2", "", nil)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "python2", products[0].Name)
}

func TestEmptyPathYieldsNoMatches(t *testing.T) {
	s, err := NewFromPath(nil, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)
	products, err := s.FindProducts("", "", nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	_, ok := s.WritableDB()
	assert.False(t, ok)
}

func TestNewestAcrossStack(t *testing.T) {
	db := t.TempDir()
	declare(t, db, "python", "2.7", "Linux64", "/opt/python2.7")
	declare(t, db, "python", "3.10", "Linux64", "/opt/python3.10")

	s, err := NewFromPath([]string{db}, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	v, ok := s.Newest("python")
	require.True(t, ok)
	assert.Equal(t, "3.10", v.String())
}
