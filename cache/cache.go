// Package cache implements C4: a per-flavor in-memory index of a
// product store, file-backed and invalidated by directory mtime, per
// spec.md §4.4.
package cache

import (
	"path/filepath"

	"github.com/CraigLoomis/eups/internal/fsutil"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
)

// CacheFormatVersion is bumped whenever the persisted .cache.<flavor>
// layout changes incompatibly; Load discards and rebuilds on mismatch,
// per spec.md §4.4 ("If the persisted format version does not match,
// the cache is discarded and rebuilt.").
const CacheFormatVersion = 1

// Cache is the in-memory index for one (db, flavor) pair. Products is
// keyed by product name then version string; Tags is keyed by tag name
// then product name, holding the bound version string. Both only ever
// contain entries whose declared flavor is an exact match for Flavor or
// the Generic wildcard (exact match wins when both are declared).
type Cache struct {
	DB         string
	Flavor     string
	Products   map[string]map[string]store.Product
	Tags       map[string]map[string]string
	dbMTime    int64
	writable   bool
	mirrorPath string
	sink       *logctx.Sink
}

func empty(db, flav string, sink *logctx.Sink) *Cache {
	return &Cache{
		DB:       db,
		Flavor:   flav,
		Products: make(map[string]map[string]store.Product),
		Tags:     make(map[string]map[string]string),
		sink:     sink,
	}
}

// cacheFileName is the basename of the persisted cache for a flavor.
func cacheFileName(flavor string) string { return ".cache." + flavor }

// lockFileName is the basename of the advisory lock guarding cache
// rebuilds for db, per spec.md §4.4/§5.
const lockFileName = ".cache.lock"

// mirrorCachePath is where a cache is persisted when db is not
// writable by the current user: <userData>/_caches_/<mirror-of-db>/.cache.<flavor>,
// per spec.md §6 ("User data directory").
func mirrorCachePath(userData, db, flavor string) string {
	// filepath.Join collapses the leading slash of an absolute db path
	// into a relative mirror under _caches_, which is exactly what we
	// want: a deterministic, collision-free mirror directory per db.
	rel := filepath.ToSlash(db)
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return filepath.Join(userData, "_caches_", filepath.FromSlash(rel), cacheFileName(flavor))
}

// Load builds a Cache for (db, flavor), reusing the persisted cache
// file if it is present, format-current, and not stale relative to
// db's product directory mtimes; otherwise it performs a full rescan
// and attempts to persist the result. userData is consulted for the
// writability-degradation mirror path described in spec.md §4.4 and §6.
func Load(db, flavor, userData string, sink *logctx.Sink) (*Cache, error) {
	c := empty(db, flavor, sink)
	c.writable = fsutil.IsWritable(db)
	c.mirrorPath = mirrorCachePath(userData, db, flavor)

	currentMTime, err := scanDBMTime(db)
	if err != nil {
		return nil, err
	}

	primaryPath := filepath.Join(db, cacheFileName(flavor))
	loadPath := primaryPath
	if !c.writable {
		loadPath = c.mirrorPath
	}

	persisted, ok, err := readPersisted(loadPath)
	if err != nil {
		sink.Warnf("cache.Load", "discarding unreadable cache %s: %v", loadPath, err)
		ok = false
	}

	if ok && persisted.Version == CacheFormatVersion && persisted.DBMTime >= currentMTime {
		c.apply(persisted)
		c.dbMTime = persisted.DBMTime
		return c, nil
	}

	if err := c.Rescan(); err != nil {
		return nil, err
	}
	c.persist()
	return c, nil
}

// Versions returns every product record cached for name, one per
// version, in no particular order.
func (c *Cache) Versions(name string) []store.Product {
	out := make([]store.Product, 0, len(c.Products[name]))
	for _, p := range c.Products[name] {
		out = append(out, p)
	}
	return out
}

// Get returns the product record for (name, versionString), if any.
func (c *Cache) Get(name, versionStr string) (store.Product, bool) {
	vs, ok := c.Products[name]
	if !ok {
		return store.Product{}, false
	}
	p, ok := vs[versionStr]
	return p, ok
}

// Put inserts or overwrites a product record, and write-through
// persists it, per spec.md §5 ("within one process, all reads after a
// local write observe the write (write-through to disk and to
// in-memory cache)").
func (c *Cache) Put(p store.Product) {
	if c.Products[p.Name] == nil {
		c.Products[p.Name] = make(map[string]store.Product)
	}
	c.Products[p.Name][p.Version.String()] = p
	c.persist()
}

// Delete removes a product record and write-through persists it.
func (c *Cache) Delete(name, versionStr string) {
	if vs, ok := c.Products[name]; ok {
		delete(vs, versionStr)
		if len(vs) == 0 {
			delete(c.Products, name)
		}
	}
	c.persist()
}

// PutTag binds tag->name to versionStr and write-through persists.
func (c *Cache) PutTag(tagName, productName, versionStr string) {
	if c.Tags[tagName] == nil {
		c.Tags[tagName] = make(map[string]string)
	}
	c.Tags[tagName][productName] = versionStr
	c.persist()
}

// DeleteTag removes tag's binding for productName and write-through
// persists.
func (c *Cache) DeleteTag(tagName, productName string) {
	if m, ok := c.Tags[tagName]; ok {
		delete(m, productName)
		if len(m) == 0 {
			delete(c.Tags, tagName)
		}
	}
	c.persist()
}
