package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/CraigLoomis/eups/internal/fsutil"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/version"
)

// ChainEntry is one flavor-scoped binding inside a .chain file, per
// spec.md §3 ("one or more flavor-scoped entries of the form (flavor,
// version)").
type ChainEntry struct {
	Flavor  string
	Version version.Version
}

// ReadChainFile parses path into its flavor-scoped entries. A missing
// file returns (nil, nil): an absent chain file means "tag not bound in
// this db", not an error.
func ReadChainFile(path string, sink *logctx.Sink) ([]ChainEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []ChainEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			sink.Warnf("ReadChainFile", "unparsable chain entry in %s: %q", path, line)
			continue
		}
		out = append(out, ChainEntry{Flavor: fields[0], Version: version.New(fields[1])})
	}
	if err := sc.Err(); err != nil {
		sink.Warnf("ReadChainFile", "truncated read of %s: %v", path, err)
	}
	return out, nil
}

// WriteChainFile atomically rewrites path with entries, one per line,
// sorted by flavor for determinism. An empty entries list deletes the
// file, per spec.md §3 ("Removal of the last entry deletes the file.").
func WriteChainFile(path string, entries []ChainEntry) error {
	if len(entries) == 0 {
		return fsutil.RemoveIfExists(path)
	}

	sorted := append([]ChainEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Flavor < sorted[j].Flavor })

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s\n", e.Flavor, e.Version.String())
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// ReplaceEntry returns a copy of entries with any existing entry for
// flavor replaced by (flavor, v), or appended if none existed. This is
// the atomic-reassignment primitive spec.md §4.5 requires: "if
// reassigning from another version of the same product in the same db,
// the previous binding is removed atomically."
func ReplaceEntry(entries []ChainEntry, flavor string, v version.Version) []ChainEntry {
	out := make([]ChainEntry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Flavor == flavor {
			out = append(out, ChainEntry{Flavor: flavor, Version: v})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, ChainEntry{Flavor: flavor, Version: v})
	}
	return out
}

// RemoveEntry returns a copy of entries with flavor's binding removed,
// and whether anything was actually removed. If version is non-zero,
// the entry is only removed if its version matches, per spec.md §4.5
// ("if version is supplied and does not match, the call is a no-op").
func RemoveEntry(entries []ChainEntry, flavor string, v version.Version) ([]ChainEntry, bool) {
	out := make([]ChainEntry, 0, len(entries))
	removed := false
	for _, e := range entries {
		if e.Flavor == flavor && (v.IsZero() || e.Version.Equal(v)) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}
