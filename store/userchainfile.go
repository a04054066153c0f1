package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CraigLoomis/eups/internal/fsutil"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/version"
)

// UserChainEntry is one binding inside a user-scope <user>/<tag>.chain
// file. Unlike a global chain file — which already lives inside a
// single product's directory — a user-scope chain file is not nested
// under any product directory (spec.md §6: "<user>/<tag>.chain"), so
// each entry must name its own product.
type UserChainEntry struct {
	Product string
	Flavor  string
	Version version.Version
}

// UserChainFilePath returns <userData>/<tag>.chain.
func UserChainFilePath(userData, tag string) string {
	return filepath.Join(userData, tag+".chain")
}

// ReadUserChainFile parses path into its entries. A missing file
// returns (nil, nil).
func ReadUserChainFile(path string, sink *logctx.Sink) ([]UserChainEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []UserChainEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			sink.Warnf("ReadUserChainFile", "unparsable entry in %s: %q", path, line)
			continue
		}
		out = append(out, UserChainEntry{Product: fields[0], Flavor: fields[1], Version: version.New(fields[2])})
	}
	if err := sc.Err(); err != nil {
		sink.Warnf("ReadUserChainFile", "truncated read of %s: %v", path, err)
	}
	return out, nil
}

// WriteUserChainFile atomically rewrites path, sorted by (product,
// flavor) for determinism. An empty entries list deletes the file.
func WriteUserChainFile(path string, entries []UserChainEntry) error {
	if len(entries) == 0 {
		return fsutil.RemoveIfExists(path)
	}

	sorted := append([]UserChainEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Product != sorted[j].Product {
			return sorted[i].Product < sorted[j].Product
		}
		return sorted[i].Flavor < sorted[j].Flavor
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		fmt.Fprintf(&buf, "%s %s %s\n", e.Product, e.Flavor, e.Version.String())
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// ReplaceUserEntry mirrors ReplaceEntry for the (product, flavor)
// keyspace of a user-scope chain file.
func ReplaceUserEntry(entries []UserChainEntry, product, flavor string, v version.Version) []UserChainEntry {
	out := make([]UserChainEntry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Product == product && e.Flavor == flavor {
			out = append(out, UserChainEntry{Product: product, Flavor: flavor, Version: v})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, UserChainEntry{Product: product, Flavor: flavor, Version: v})
	}
	return out
}

// RemoveUserEntry mirrors RemoveEntry for the user-scope keyspace.
func RemoveUserEntry(entries []UserChainEntry, product, flavor string, v version.Version) ([]UserChainEntry, bool) {
	out := make([]UserChainEntry, 0, len(entries))
	removed := false
	for _, e := range entries {
		if e.Product == product && e.Flavor == flavor && (v.IsZero() || e.Version.Equal(v)) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}
