package cache

import (
	"os"
	"path/filepath"

	"github.com/CraigLoomis/eups/internal/fsutil"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

func cachePathIn(db, flavor string) string { return filepath.Join(db, cacheFileName(flavor)) }

func lockFilePath(db string) string { return filepath.Join(db, lockFileName) }

func parentDir(path string) string { return filepath.Dir(path) }

// persistedProduct is the flattened, TOML-friendly form of one cached
// product record.
type persistedProduct struct {
	Name      string `toml:"name"`
	Version   string `toml:"version"`
	Dir       string `toml:"dir"`
	TableFile string `toml:"tableFile"`
}

// persistedTag is the flattened, TOML-friendly form of one cached tag
// binding.
type persistedTag struct {
	Tag     string `toml:"tag"`
	Product string `toml:"product"`
	Version string `toml:"version"`
}

// persistedCache is the on-disk shape of <db>/.cache.<flavor>, per
// spec.md §4.4: "an implementation MUST choose one and version it."
// This module chooses a stable, human-diffable TOML document.
type persistedCache struct {
	Version  int                `toml:"cacheVersion"`
	Flavor   string             `toml:"flavor"`
	DBMTime  int64              `toml:"dbMTime"`
	Products []persistedProduct `toml:"products"`
	Tags     []persistedTag     `toml:"tags"`
}

func (c *Cache) toPersisted() persistedCache {
	pc := persistedCache{Version: CacheFormatVersion, Flavor: c.Flavor, DBMTime: c.dbMTime}
	for name, versions := range c.Products {
		for vs, p := range versions {
			pc.Products = append(pc.Products, persistedProduct{
				Name: name, Version: vs, Dir: p.Dir, TableFile: p.TableFile,
			})
		}
	}
	for tagName, byProduct := range c.Tags {
		for productName, vs := range byProduct {
			pc.Tags = append(pc.Tags, persistedTag{Tag: tagName, Product: productName, Version: vs})
		}
	}
	return pc
}

func (c *Cache) apply(pc persistedCache) {
	c.Products = make(map[string]map[string]store.Product)
	for _, p := range pc.Products {
		if c.Products[p.Name] == nil {
			c.Products[p.Name] = make(map[string]store.Product)
		}
		c.Products[p.Name][p.Version] = store.Product{
			Name: p.Name, Version: version.New(p.Version), Flavor: c.Flavor,
			DB: c.DB, Dir: p.Dir, TableFile: p.TableFile,
		}
	}

	c.Tags = make(map[string]map[string]string)
	for _, t := range pc.Tags {
		if c.Tags[t.Tag] == nil {
			c.Tags[t.Tag] = make(map[string]string)
		}
		c.Tags[t.Tag][t.Product] = t.Version
	}
}

func readPersisted(path string) (persistedCache, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return persistedCache{}, false, nil
		}
		return persistedCache{}, false, errors.Wrapf(err, "reading %s", path)
	}
	var pc persistedCache
	if err := toml.Unmarshal(data, &pc); err != nil {
		return persistedCache{}, false, errors.Wrapf(err, "parsing %s", path)
	}
	return pc, true, nil
}

// persist writes the cache to disk, guarded by the advisory
// .cache.lock, per spec.md §4.4/§5. If the primary db root isn't
// writable, it writes to the user-data mirror instead; if neither lock
// nor write succeeds within the timeout, it degrades to in-memory-only
// and warns, never failing the caller.
func (c *Cache) persist() {
	path := c.mirrorPath
	if c.writable {
		path = cachePathIn(c.DB, c.Flavor)
	}
	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		c.sink.Warnf("cache.persist", "cannot create %s, keeping cache in-memory only: %v", parentDir(path), err)
		return
	}

	data, err := toml.Marshal(c.toPersisted())
	if err != nil {
		c.sink.Warnf("cache.persist", "marshaling cache: %v", err)
		return
	}

	lock := fsutil.NewLock(lockFilePath(parentDir(path)))
	err = fsutil.WithLock(lock, fsutil.DefaultLockTimeout, func() error {
		return fsutil.WriteFileAtomic(path, data, 0o644)
	})
	if err != nil {
		c.sink.Warnf("cache.persist", "degrading to in-memory cache for %s: %v", c.DB, err)
	}
}
