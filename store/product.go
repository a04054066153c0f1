// Package store implements C3: the on-disk representation of products
// and tag bindings under a single database root — <db>/<product>/<version>.version
// and <db>/<product>/<tag>.chain — per spec.md §4.3.
package store

import (
	"path/filepath"

	"github.com/CraigLoomis/eups/version"
)

// Product is an installed software unit, per spec.md §3. Tags is
// populated by the cache/tag layers, not by the store itself — the
// store only knows about a single (name, version, flavor) record at a
// time.
type Product struct {
	Name      string
	Version   version.Version
	Flavor    string
	DB        string
	Dir       string
	TableFile string
	Tags      []string
}

// noneDirValues are the sentinel strings meaning "no install directory"
// (spec.md §3).
var noneDirValues = map[string]bool{
	"none":   true,
	"???":    true,
	"(none)": true,
	"":       true,
}

// IsNoneDir reports whether s is one of the recognized "no install
// directory" sentinels.
func IsNoneDir(s string) bool { return noneDirValues[s] }

// IsNoneTableFile reports whether s is the "none" sentinel for
// TableFile.
func IsNoneTableFile(s string) bool { return s == "none" || s == "" }

// HasDir reports whether p has a real, non-sentinel install directory.
func (p Product) HasDir() bool { return !IsNoneDir(p.Dir) }

// HasTableFile reports whether p has a real, non-sentinel table file.
func (p Product) HasTableFile() bool { return !IsNoneTableFile(p.TableFile) }

// ProductDir returns the directory under db holding every version file
// and chain file for name: <db>/<name>/.
func ProductDir(db, name string) string {
	return filepath.Join(db, name)
}

// VersionFilePath returns <db>/<name>/<version>.version, matching the
// literal layout in spec.md §6. One physical file backs every flavor
// declared for (name, version); each flavor gets its own key/value
// block inside it (see ReadVersionFile/WriteVersionFile in
// versionfile.go), which is how "one per flavor" (spec.md §3) is
// satisfied without a flavor-qualified filename.
func VersionFilePath(db, name string, v version.Version) string {
	return filepath.Join(ProductDir(db, name), v.String()+".version")
}

// ChainFilePath returns <db>/<name>/<tag>.chain.
func ChainFilePath(db, name, tag string) string {
	return filepath.Join(ProductDir(db, name), tag+".chain")
}
