package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// scanDBMTime returns the most recent modification time, in Unix
// nanoseconds, of any immediate <db>/<product>/ directory, per spec.md
// §4.4's invalidation rule. A missing db scans as mtime 0, so the first
// Load always rescans.
func scanDBMTime(db string) (int64, error) {
	entries, err := os.ReadDir(db)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "reading db root %s", db)
	}

	var max int64
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// A directory that disappeared between readdir and stat is
			// treated as absent, per spec.md §5 ("Readers ... tolerate
			// a file disappearing between readdir and open").
			if os.IsNotExist(err) {
				continue
			}
			return 0, errors.Wrapf(err, "stat %s", filepath.Join(db, e.Name()))
		}
		if t := fi.ModTime().UnixNano(); t > max {
			max = t
		}
	}
	return max, nil
}

// Rescan performs the full, non-incremental scan of c.DB required by
// spec.md §4.4 ("Rescans are full (not incremental); correctness over
// cleverness."), replacing c.Products and c.Tags in place.
func (c *Cache) Rescan() error {
	products := make(map[string]map[string]store.Product)
	tags := make(map[string]map[string]string)

	mtime, err := scanDBMTime(c.DB)
	if err != nil {
		return err
	}

	topEntries, err := os.ReadDir(c.DB)
	if err != nil {
		if os.IsNotExist(err) {
			c.Products, c.Tags, c.dbMTime = products, tags, mtime
			return nil
		}
		return errors.Wrapf(err, "reading db root %s", c.DB)
	}

	for _, top := range topEntries {
		if !top.IsDir() || strings.HasPrefix(top.Name(), ".") {
			continue
		}
		productName := top.Name()
		productDir := filepath.Join(c.DB, productName)

		err := godirwalk.Walk(productDir, &godirwalk.Options{
			Unsorted: true,
			Callback: func(osPathname string, de *godirwalk.Dirent) error {
				if osPathname == productDir {
					return nil
				}
				if de.IsDir() {
					return filepath.SkipDir
				}
				name := filepath.Base(osPathname)
				switch {
				case strings.HasSuffix(name, ".version"):
					c.scanVersionFile(products, productName, osPathname)
				case strings.HasSuffix(name, ".chain"):
					tagName := strings.TrimSuffix(name, ".chain")
					c.scanChainFile(tags, productName, tagName, osPathname)
				}
				return nil
			},
		})
		if err != nil {
			return errors.Wrapf(err, "walking %s", productDir)
		}
	}

	c.Products, c.Tags, c.dbMTime = products, tags, mtime
	return nil
}

func (c *Cache) scanVersionFile(products map[string]map[string]store.Product, productName, path string) {
	name := filepath.Base(path)
	versionStr := strings.TrimSuffix(name, ".version")

	records, err := store.ReadVersionFile(path, c.sink)
	if err != nil {
		c.sink.Warnf("cache.Rescan", "reading %s: %v", path, err)
		return
	}
	rec, ok := bestRecordForFlavor(records, c.Flavor)
	if !ok {
		return
	}

	if products[productName] == nil {
		products[productName] = make(map[string]store.Product)
	}
	products[productName][versionStr] = store.Product{
		Name:      productName,
		Version:   version.New(versionStr),
		Flavor:    c.Flavor,
		DB:        c.DB,
		Dir:       rec.Dir,
		TableFile: rec.TableFile,
	}
}

// bestRecordForFlavor picks the record declared for flavor exactly, or
// falls back to the Generic wildcard declaration, per spec.md §3
// ("flavor: platform identifier; Generic is a wildcard").
func bestRecordForFlavor(records map[string]store.Record, flavor string) (store.Record, bool) {
	if rec, ok := records[flavor]; ok {
		return rec, true
	}
	if rec, ok := records["Generic"]; ok {
		return rec, true
	}
	return store.Record{}, false
}

func (c *Cache) scanChainFile(tags map[string]map[string]string, productName, tagName, path string) {
	entries, err := store.ReadChainFile(path, c.sink)
	if err != nil {
		c.sink.Warnf("cache.Rescan", "reading %s: %v", path, err)
		return
	}

	var best *store.ChainEntry
	for i := range entries {
		e := entries[i]
		if e.Flavor == c.Flavor {
			best = &e
			break
		}
		if e.Flavor == "Generic" && best == nil {
			best = &e
		}
	}
	if best == nil {
		return
	}
	if tags[tagName] == nil {
		tags[tagName] = make(map[string]string)
	}
	tags[tagName][productName] = best.Version.String()
}
