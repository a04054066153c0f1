// Package stack implements C6: composing an ordered list of product
// database roots into a single queryable, writable surface, per
// spec.md §4.6.
package stack

import (
	"path/filepath"
	"sort"

	"github.com/CraigLoomis/eups/cache"
	"github.com/CraigLoomis/eups/envctx"
	"github.com/CraigLoomis/eups/internal/fsutil"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ProductStack composes the ordered database roots named by EUPS_PATH.
// Reads return the first hit in root order; writes target the first
// writable root, per spec.md §4.6.
type ProductStack struct {
	dbs         []string
	flavor      string
	userDataDir string
	caches      map[string]*cache.Cache
	sink        *logctx.Sink
}

// NewFromPath builds a ProductStack over dbs (highest priority first),
// loading a per-db cache for flavor concurrently via errgroup — a
// multi-root EUPS_PATH rebuilds every stale cache in parallel rather
// than serially, per spec.md §4.4 Concurrency note.
func NewFromPath(dbs []string, flavor, userDataDir string, sink *logctx.Sink) (*ProductStack, error) {
	s := &ProductStack{
		dbs:         append([]string(nil), dbs...),
		flavor:      flavor,
		userDataDir: userDataDir,
		caches:      make(map[string]*cache.Cache, len(dbs)),
		sink:        sink,
	}
	if err := s.Rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromEnv builds a ProductStack from EUPS_PATH/EUPS_FLAVOR/EUPS_USERDATA
// as recorded in env.
func NewFromEnv(env *envctx.Environment, flavor string, sink *logctx.Sink) (*ProductStack, error) {
	userData, _ := env.Get(envctx.VarUserData)
	return NewFromPath(env.Path(), flavor, userData, sink)
}

// Rebuild reloads every db's cache concurrently, replacing the prior
// snapshot atomically once all loads complete.
func (s *ProductStack) Rebuild() error {
	caches := make([]*cache.Cache, len(s.dbs))
	g := new(errgroup.Group)
	for i, db := range s.dbs {
		i, db := i, db
		g.Go(func() error {
			c, err := cache.Load(db, s.flavor, s.userDataDir, s.sink)
			if err != nil {
				return errors.Wrapf(err, "loading cache for db %s", db)
			}
			caches[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	next := make(map[string]*cache.Cache, len(s.dbs))
	for i, db := range s.dbs {
		next[db] = caches[i]
	}
	s.caches = next
	return nil
}

// DBs returns the ordered database roots, highest priority first.
func (s *ProductStack) DBs() []string { return append([]string(nil), s.dbs...) }

// Flavor returns the flavor this stack's caches were built for.
func (s *ProductStack) Flavor() string { return s.flavor }

// UserDataDir returns the configured user-scope data directory.
func (s *ProductStack) UserDataDir() string { return s.userDataDir }

// Caches returns the per-db caches in stack priority order, for
// consumers (the tag registry, the dependency resolver) that need to
// search across every root.
func (s *ProductStack) Caches() []*cache.Cache {
	out := make([]*cache.Cache, 0, len(s.dbs))
	for _, db := range s.dbs {
		if c, ok := s.caches[db]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the first-hit (name, versionStr) record across the stack,
// in root priority order.
func (s *ProductStack) Get(name, versionStr string) (store.Product, bool) {
	for _, db := range s.dbs {
		c, ok := s.caches[db]
		if !ok {
			continue
		}
		if p, ok := c.Get(name, versionStr); ok {
			return p, true
		}
	}
	return store.Product{}, false
}

// Known reports whether name exists at all (any version) in db, used by
// the tag registry to distinguish an unknown product (ProductNotFound)
// from a version mismatch (warn-and-no-op), per spec.md §4.5.
func (s *ProductStack) Known(db, name string) bool {
	c, ok := s.caches[db]
	if !ok {
		return false
	}
	return len(c.Versions(name)) > 0
}

// WritableDB returns the first root writable by the current user, the
// write target for declare/undeclare/assignTag.
func (s *ProductStack) WritableDB() (string, bool) {
	for _, db := range s.dbs {
		if fsutil.IsWritable(db) {
			return db, true
		}
	}
	return "", false
}

// WritableDBFor returns the first writable root that already contains
// name, falling back to the first writable root overall — used when
// reassigning a tag for a product already declared somewhere in the
// stack.
func (s *ProductStack) WritableDBFor(name string) (string, bool) {
	for _, db := range s.dbs {
		if c, ok := s.caches[db]; ok && len(c.Versions(name)) > 0 && fsutil.IsWritable(db) {
			return db, true
		}
	}
	return s.WritableDB()
}

// FindProducts enumerates every (name, version, flavor) match across the
// stack for nameGlob/versionGlob (shell-style, via path/filepath.Match),
// deduplicated by (name, version, flavor) with earlier-stack entries
// shadowing later ones, per spec.md §4.6. An empty glob matches
// everything. Results are ordered by name lexically, then version
// ascending, per spec.md §4.9.
func (s *ProductStack) FindProducts(nameGlob, versionGlob string, flavors []string) ([]store.Product, error) {
	flavorSet := toSet(flavors)
	seen := make(map[string]bool)
	var out []store.Product

	for _, db := range s.dbs {
		c, ok := s.caches[db]
		if !ok {
			continue
		}
		for name, versions := range c.Products {
			if nameGlob != "" {
				matched, err := filepath.Match(nameGlob, name)
				if err != nil {
					return nil, errors.Wrapf(err, "bad name pattern %q", nameGlob)
				}
				if !matched {
					continue
				}
			}
			for vs, p := range versions {
				if versionGlob != "" {
					matched, err := filepath.Match(versionGlob, vs)
					if err != nil {
						return nil, errors.Wrapf(err, "bad version pattern %q", versionGlob)
					}
					if !matched {
						continue
					}
				}
				if len(flavorSet) > 0 && !flavorSet[p.Flavor] {
					continue
				}
				key := name + "\x00" + vs + "\x00" + p.Flavor
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, p)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version.Compare(out[j].Version) < 0
	})
	return out, nil
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// Versions returns every declared version of name across the stack, in
// no particular order — a building block for the "newest" pseudo-tag
// and for dependency resolution.
func (s *ProductStack) Versions(name string) []store.Product {
	var out []store.Product
	for _, db := range s.dbs {
		if c, ok := s.caches[db]; ok {
			out = append(out, c.Versions(name)...)
		}
	}
	return out
}

// Newest returns the highest-comparing declared version of name across
// the stack.
func (s *ProductStack) Newest(name string) (version.Version, bool) {
	vs := s.Versions(name)
	versions := make([]version.Version, len(vs))
	for i, p := range vs {
		versions[i] = p.Version
	}
	return version.Max(versions)
}
