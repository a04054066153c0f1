// Package version implements C1: parsing and comparing EUPS version
// strings and predicates. Versions are free-form text — "2.5.2",
// "11.0.rc2", "svn6021" are all legal — ordered by dotted
// numeric-then-lexical segmentation, per spec.md §4.1.
package version

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version wraps a raw version string. The zero value is not useful;
// construct with New. The raw string is retained verbatim for exact
// round-trip (spec.md §9, "String-typed versions").
type Version struct {
	raw string
}

// New constructs a Version from raw text. Construction never fails:
// any string is a legal version (spec.md §3, "version: free-form
// string").
func New(raw string) Version { return Version{raw: raw} }

// String returns the original, unmodified text.
func (v Version) String() string { return v.raw }

// IsZero reports whether v was never assigned a version string.
func (v Version) IsZero() bool { return v.raw == "" }

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other. It is total and antisymmetric: Compare(a,b) == -Compare(b,a)
// for all a, b (spec.md §8).
//
// If both v and other parse as strict semantic versions, comparison
// defers to github.com/Masterminds/semver/v3, which also orders
// pre-release/build-metadata suffixes correctly per SemVer 2.0. EUPS
// product versions are frequently not strict semver (e.g. "11.0.rc2",
// "svn6021"), so that is the common case, not the fast path: failing
// either parse falls back to the dotted segmentation comparator
// required by spec.md §4.1.
func Compare(v, other Version) int {
	if sv1, err1 := semver.StrictNewVersion(v.raw); err1 == nil {
		if sv2, err2 := semver.StrictNewVersion(other.raw); err2 == nil {
			return sv1.Compare(sv2)
		}
	}
	return compareSegments(v.raw, other.raw)
}

// Compare is the method form of the package-level Compare.
func (v Version) Compare(other Version) int { return Compare(v, other) }

// Less reports v < other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// Equal reports v == other by comparator, not by raw string identity —
// "2.5" and "2.5.0" may or may not be equal depending on segmentation;
// this calls Compare, so it follows the same rule consistently.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// Max returns the highest-comparing Version in vs, or the zero Version
// if vs is empty. Used by the "newest" pseudo-tag (spec.md §4.5).
func Max(vs []Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if v.Compare(best) > 0 {
			best = v
		}
	}
	return best, true
}

// compareSegments implements the dotted numeric-then-lexical
// segmentation comparator from spec.md §4.1: split on '.', compare
// segment-wise; if both segments parse as integers compare
// numerically, else compare lexically; a prefix match is less than the
// longer string (e.g. "1.5" < "1.5.1"). A trailing alphanumeric suffix
// on a segment (e.g. the "1" in "1.5.7.1", or "rc2" in "11.0.rc2")
// simply becomes its own segment or is compared lexically within a
// segment — the split is purely on '.', so no special-casing is
// needed beyond segment-wise compare.
func compareSegments(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// compareSegment compares a single dot-delimited segment. Both
// segments that parse as base-10 integers are compared numerically
// (so "9" < "10"); otherwise they are compared as plain strings.
func compareSegment(a, b string) int {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
