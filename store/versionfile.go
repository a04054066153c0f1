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
)

// Record is the per-flavor body of a .version file: the fields
// spec.md §4.3 calls out explicitly (FLAVOR=, PROD_DIR=, TABLE_FILE=).
type Record struct {
	Flavor    string
	Dir       string
	TableFile string
}

// ReadVersionFile parses the key/value blocks of path, one per flavor,
// keyed by FLAVOR=. A missing file is reported as (nil, nil) rather
// than an error — callers should treat that as "no declared versions
// for this (name, version)". A truncated or unparsable block is
// dropped and logged at warning level rather than failing the whole
// read, per spec.md §4.3 ("Reads tolerate missing or truncated files by
// treating the product or binding as absent and logging a warning.").
func ReadVersionFile(path string, sink *logctx.Sink) (map[string]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	out := make(map[string]Record)
	cur := Record{}
	haveAny := false

	flush := func() {
		if cur.Flavor == "" {
			if haveAny {
				sink.Warnf("ReadVersionFile", "block in %s missing FLAVOR=, dropping", path)
			}
			cur = Record{}
			return
		}
		out[cur.Flavor] = cur
		cur = Record{}
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := splitKV(line)
		if !ok {
			sink.Warnf("ReadVersionFile", "unparsable line in %s: %q", path, line)
			continue
		}
		haveAny = true
		switch key {
		case "FLAVOR":
			if cur.Flavor != "" {
				// A new FLAVOR= inside the same block without a blank
				// line separator: treat it as starting a fresh block.
				flush()
			}
			cur.Flavor = val
		case "PROD_DIR":
			cur.Dir = val
		case "TABLE_FILE":
			cur.TableFile = val
		default:
			sink.Warnf("ReadVersionFile", "unrecognized key %q in %s", key, path)
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		sink.Warnf("ReadVersionFile", "truncated read of %s: %v", path, err)
	}
	return out, nil
}

func splitKV(line string) (key, val string, ok bool) {
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

// WriteVersionFile atomically rewrites path with one block per flavor
// in records, sorted by flavor name for a byte-stable diff across
// writes with the same content (spec.md §4.7 "Determinism" applies to
// the resolver's graph output, but a stable on-disk format is the same
// spirit applied to the store).
func WriteVersionFile(path string, records map[string]Record) error {
	if len(records) == 0 {
		return fsutil.RemoveIfExists(path)
	}

	flavors := make([]string, 0, len(records))
	for f := range records {
		flavors = append(flavors, f)
	}
	sort.Strings(flavors)

	var buf bytes.Buffer
	for i, f := range flavors {
		r := records[f]
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "FLAVOR = %s\n", r.Flavor)
		fmt.Fprintf(&buf, "PROD_DIR = %s\n", r.Dir)
		fmt.Fprintf(&buf, "TABLE_FILE = %s\n", r.TableFile)
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
