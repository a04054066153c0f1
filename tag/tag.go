// Package tag implements C5: the tag registry — recognizing tag names,
// resolving a (tag, product) pair to a bound version, and assigning or
// removing bindings in either the global (per-db) or user scope, per
// spec.md §4.5.
package tag

import (
	"os"
	"sort"
	"sync"

	"github.com/CraigLoomis/eups/cache"
	"github.com/CraigLoomis/eups/errs"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/version"
)

// Scope distinguishes a global (product-db-resident) tag binding from a
// user-scope one stored under the user data directory, per spec.md §3
// ("Two scope variants: global ... and user ...").
type Scope int

const (
	Global Scope = iota
	User
)

// Pseudo-tags are recognized by every registry and never persisted as
// chain files: "newest" is computed from the stack's known versions;
// "setup" is matched against the live SETUP_<NAME> environment by the
// façade's FindProducts; "commandline" is recognized and otherwise
// unused.
const (
	Newest      = "newest"
	Setup       = "setup"
	CommandLine = "commandline"
)

// Registry tracks which tag names are recognized and the preferred
// resolution order used when a lookup doesn't name a specific tag. It
// holds no reference to any particular product stack; callers pass the
// caches and paths to consult into Resolve/AssignTag/UnassignTag, so one
// Registry can serve every stack instance in a process.
type Registry struct {
	mu         sync.RWMutex
	recognized map[string]bool
	preferred  []string
	sink       *logctx.Sink
}

// NewRegistry builds a Registry seeded with the three pseudo-tags plus
// "current", which every eups installation recognizes regardless of
// what chain files exist.
func NewRegistry(sink *logctx.Sink) *Registry {
	r := &Registry{
		recognized: make(map[string]bool),
		sink:       sink,
	}
	r.Recognize(Newest, Setup, CommandLine, "current")
	return r
}

// Recognize registers names as valid tags, e.g. after discovering a
// chain file during a cache rescan.
func (r *Registry) Recognize(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.recognized[n] = true
	}
}

// IsRecognized reports whether name has been registered.
func (r *Registry) IsRecognized(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recognized[name]
}

// Recognized returns every registered tag name, sorted.
func (r *Registry) Recognized() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.recognized))
	for n := range r.recognized {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SetPreferredTags replaces the preferred resolution order. It fails
// with TagNotRecognized if any entry is unknown, per spec.md §4.5.
func (r *Registry) SetPreferredTags(tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tags {
		if !r.recognized[t] {
			return errs.New(errs.TagNotRecognized, "setPreferredTags", "unrecognized tag %q", t)
		}
	}
	r.preferred = append([]string(nil), tags...)
	return nil
}

// SetPreferredTagsFiltering replaces the preferred resolution order,
// silently dropping any unrecognized entry instead of failing — the
// "kind" variant spec.md §4.5 describes for bulk/inherited tag lists
// where a stray unknown name shouldn't abort the whole assignment.
func (r *Registry) SetPreferredTagsFiltering(tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]string, 0, len(tags))
	for _, t := range tags {
		if r.recognized[t] {
			kept = append(kept, t)
		}
	}
	r.preferred = kept
}

// PreferredTags returns the current preferred resolution order.
func (r *Registry) PreferredTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.preferred...)
}

// Resolve looks up the version tagName binds productName to. User-scope
// bindings are consulted first (a local override), then each db cache in
// priority order, per spec.md §4.5's scope precedence. caches must be
// ordered highest-priority first, matching the owning product stack's db
// order.
func (r *Registry) Resolve(tagName, productName string, caches []*cache.Cache, userDataDir, flavor string) (version.Version, string, bool, error) {
	if tagName == Newest {
		return r.resolveNewest(productName, caches)
	}

	if !r.IsRecognized(tagName) {
		return version.Version{}, "", false, errs.New(errs.TagNotRecognized, "resolveTag", "unrecognized tag %q", tagName)
	}

	if userDataDir != "" {
		entries, err := store.ReadUserChainFile(store.UserChainFilePath(userDataDir, tagName), r.sink)
		if err != nil {
			r.sink.Warnf("resolveTag", "reading user chain for %q: %v", tagName, err)
		}
		if v, ok := bestUserEntry(entries, productName, flavor); ok {
			return v, "", true, nil
		}
	}

	for _, c := range caches {
		if vs, ok := c.Tags[tagName]; ok {
			if vStr, ok := vs[productName]; ok {
				return version.New(vStr), c.DB, true, nil
			}
		}
	}
	return version.Version{}, "", false, nil
}

func (r *Registry) resolveNewest(productName string, caches []*cache.Cache) (version.Version, string, bool, error) {
	var best version.Version
	var bestDB string
	found := false
	for _, c := range caches {
		for _, p := range c.Versions(productName) {
			if !found || p.Version.Compare(best) > 0 {
				best, bestDB, found = p.Version, c.DB, true
			}
		}
	}
	return best, bestDB, found, nil
}

func bestUserEntry(entries []store.UserChainEntry, productName, flavor string) (version.Version, bool) {
	var generic *store.UserChainEntry
	for i := range entries {
		e := entries[i]
		if e.Product != productName {
			continue
		}
		if e.Flavor == flavor {
			return e.Version, true
		}
		if e.Flavor == "Generic" {
			generic = &e
		}
	}
	if generic != nil {
		return generic.Version, true
	}
	return version.Version{}, false
}

// AssignTag binds tagName to (productName, flavor, v) in scope, writing
// through to the appropriate chain file. Assigning a not-yet-recognized
// tag name registers it, per spec.md §4.5 ("assignTag ... implicitly
// recognizes the tag if it wasn't already").
func (r *Registry) AssignTag(tagName, productName, flavor string, v version.Version, scope Scope, db, userDataDir string) error {
	r.Recognize(tagName)

	switch scope {
	case User:
		path := store.UserChainFilePath(userDataDir, tagName)
		entries, err := store.ReadUserChainFile(path, r.sink)
		if err != nil {
			return errs.Wrap(errs.IOError, "assignTag", err)
		}
		entries = store.ReplaceUserEntry(entries, productName, flavor, v)
		if err := store.WriteUserChainFile(path, entries); err != nil {
			return errs.Wrap(errs.IOError, "assignTag", err)
		}
		return nil
	default:
		if err := os.MkdirAll(store.ProductDir(db, productName), 0o755); err != nil {
			return errs.Wrap(errs.IOError, "assignTag", err)
		}
		path := store.ChainFilePath(db, productName, tagName)
		entries, err := store.ReadChainFile(path, r.sink)
		if err != nil {
			return errs.Wrap(errs.IOError, "assignTag", err)
		}
		entries = store.ReplaceEntry(entries, flavor, v)
		if err := store.WriteChainFile(path, entries); err != nil {
			return errs.Wrap(errs.IOError, "assignTag", err)
		}
		return nil
	}
}

// UnassignTag removes tagName's binding for productName/flavor in scope.
// If v is non-zero and the existing binding points at a different
// version, the call is a warn-and-no-op rather than an error — per the
// resolved Open Question in spec.md §9, only an entirely unknown product
// is a hard ProductNotFound. productKnown should report whether
// productName exists at all in db (any version), which the caller
// typically answers from its cache.
func (r *Registry) UnassignTag(tagName, productName, flavor string, v version.Version, scope Scope, db, userDataDir string, productKnown bool) error {
	if !productKnown {
		return errs.New(errs.ProductNotFound, "unassignTag", "product %q not found in %s", productName, db)
	}

	switch scope {
	case User:
		path := store.UserChainFilePath(userDataDir, tagName)
		entries, err := store.ReadUserChainFile(path, r.sink)
		if err != nil {
			return errs.Wrap(errs.IOError, "unassignTag", err)
		}
		remaining, removed := store.RemoveUserEntry(entries, productName, flavor, v)
		if !removed {
			r.sink.Warnf("unassignTag", "no matching user-scope binding for %s/%s (tag %q); leaving unchanged", productName, flavor, tagName)
			return nil
		}
		if err := store.WriteUserChainFile(path, remaining); err != nil {
			return errs.Wrap(errs.IOError, "unassignTag", err)
		}
		return nil
	default:
		path := store.ChainFilePath(db, productName, tagName)
		entries, err := store.ReadChainFile(path, r.sink)
		if err != nil {
			return errs.Wrap(errs.IOError, "unassignTag", err)
		}
		remaining, removed := store.RemoveEntry(entries, flavor, v)
		if !removed {
			r.sink.Warnf("unassignTag", "no matching binding for %s/%s (tag %q); leaving unchanged", productName, flavor, tagName)
			return nil
		}
		if err := store.WriteChainFile(path, remaining); err != nil {
			return errs.Wrap(errs.IOError, "unassignTag", err)
		}
		return nil
	}
}
