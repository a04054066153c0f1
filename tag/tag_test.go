package tag

import (
	"testing"

	"github.com/CraigLoomis/eups/cache"
	"github.com/CraigLoomis/eups/errs"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPreferredTagsRejectsUnknown(t *testing.T) {
	r := NewRegistry(logctx.Discard())
	err := r.SetPreferredTags([]string{"current", "bogus"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TagNotRecognized))
}

func TestSetPreferredTagsFilteringDropsUnknown(t *testing.T) {
	r := NewRegistry(logctx.Discard())
	r.SetPreferredTagsFiltering([]string{"current", "bogus", "setup"})
	assert.Equal(t, []string{"current", "setup"}, r.PreferredTags())
}

func TestAssignAndResolveGlobalTag(t *testing.T) {
	db := t.TempDir()
	r := NewRegistry(logctx.Discard())

	err := r.AssignTag("current", "python", "Linux64", version.New("2.5.2"), Global, db, "")
	require.NoError(t, err)
	assert.True(t, r.IsRecognized("current"))

	c, err := cache.Load(db, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	v, resolvedDB, found, err := r.Resolve("current", "python", []*cache.Cache{c}, "", "Linux64")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.5.2", v.String())
	assert.Equal(t, db, resolvedDB)
}

func TestResolveUserScopeOverridesGlobal(t *testing.T) {
	db := t.TempDir()
	userData := t.TempDir()
	r := NewRegistry(logctx.Discard())

	require.NoError(t, r.AssignTag("current", "python", "Linux64", version.New("2.5.2"), Global, db, ""))
	require.NoError(t, r.AssignTag("current", "python", "Linux64", version.New("2.6.0"), User, db, userData))

	c, err := cache.Load(db, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)

	v, _, found, err := r.Resolve("current", "python", []*cache.Cache{c}, userData, "Linux64")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.6.0", v.String())
}

func TestResolveUnknownTagFails(t *testing.T) {
	r := NewRegistry(logctx.Discard())
	_, _, _, err := r.Resolve("bogus", "python", nil, "", "Linux64")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TagNotRecognized))
}

func TestResolveNewestAcrossCaches(t *testing.T) {
	db := t.TempDir()
	r := NewRegistry(logctx.Discard())
	require.NoError(t, r.AssignTag("current", "python", "Linux64", version.New("2.5.2"), Global, db, ""))

	c, err := cache.Load(db, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)
	c.Put(store.Product{Name: "python", Version: version.New("3.0"), Flavor: "Linux64", DB: db, Dir: "/opt/python3.0"})

	v, _, found, err := r.Resolve(Newest, "python", []*cache.Cache{c}, "", "Linux64")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3.0", v.String())
}

func TestUnassignVersionMismatchIsNoOp(t *testing.T) {
	db := t.TempDir()
	r := NewRegistry(logctx.Discard())
	require.NoError(t, r.AssignTag("current", "python", "Linux64", version.New("2.5.2"), Global, db, ""))

	err := r.UnassignTag("current", "python", "Linux64", version.New("9.9.9"), Global, db, "", true)
	require.NoError(t, err)

	c, err := cache.Load(db, "Linux64", t.TempDir(), logctx.Discard())
	require.NoError(t, err)
	v, _, found, err := r.Resolve("current", "python", []*cache.Cache{c}, "", "Linux64")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2.5.2", v.String())
}

func TestUnassignUnknownProductFails(t *testing.T) {
	r := NewRegistry(logctx.Discard())
	err := r.UnassignTag("current", "ghost", "Linux64", version.Version{}, Global, t.TempDir(), "", false)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ProductNotFound))
}
