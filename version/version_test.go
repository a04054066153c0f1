package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareNumericSegments(t *testing.T) {
	assert.True(t, New("2.9").Less(New("2.10")), "numeric segment compare, not lexical")
	assert.True(t, New("1.5").Less(New("1.5.1")), "shorter is less than longer prefix match")
	assert.True(t, New("1.5.7").Less(New("1.5.7.1")), "trailing segment participates")
	assert.True(t, New("2.5.2").Equal(New("2.5.2")))
}

func TestCompareLexicalFallback(t *testing.T) {
	// Non-numeric segments compare lexically.
	assert.True(t, New("11.0.rc1").Less(New("11.0.rc2")))
}

func TestCompareTotalAndAntisymmetric(t *testing.T) {
	cases := [][2]string{
		{"1.0", "2.0"}, {"2.5.2", "2.6"}, {"svn6021", "svn6022"}, {"1.0", "1.0"},
	}
	for _, c := range cases {
		a, b := New(c[0]), New(c[1])
		cmp := a.Compare(b)
		rev := b.Compare(a)
		assert.Equal(t, -cmp, rev, "cmp(a,b) must equal -cmp(b,a) for %v", c)

		count := 0
		if a.Less(b) {
			count++
		}
		if a.Equal(b) {
			count++
		}
		if b.Less(a) {
			count++
		}
		assert.Equal(t, 1, count, "exactly one of <, ==, > must hold for %v", c)
	}
}

func TestSemverFastPath(t *testing.T) {
	// Both strict semver: pre-release ordering must follow SemVer 2.0,
	// which the dotted-segment fallback would get wrong (it ranks
	// "1.0.0-rc.1" above "1.0.0", since segment "0-rc" sorts after "0").
	assert.True(t, New("1.0.0-rc.1").Less(New("1.0.0")))
}

func TestMax(t *testing.T) {
	vs := []Version{New("2.5.2"), New("2.6"), New("2.5.10")}
	best, ok := Max(vs)
	require.True(t, ok)
	assert.Equal(t, "2.6", best.String())
}

func TestMaxEmpty(t *testing.T) {
	_, ok := Max(nil)
	assert.False(t, ok)
}

func TestParsePredicateOperators(t *testing.T) {
	cases := map[string]Op{
		"== 2.5.2": OpEq,
		"!= 2.5.2": OpNe,
		"<= 2.5.2": OpLe,
		">= 2.5.2": OpGe,
		"< 2.5.2":  OpLt,
		"> 2.5.2":  OpGt,
		"2.5.2":    OpEq,
	}
	for expr, want := range cases {
		p, err := ParsePredicate(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, p.Op, expr)
		assert.Equal(t, "2.5.2", p.RHS.String(), expr)
	}
}

func TestParsePredicateRejectsBareEquals(t *testing.T) {
	_, err := ParsePredicate("= 2.5.2")
	require.Error(t, err)
}

func TestParsePredicateRejectsEmpty(t *testing.T) {
	_, err := ParsePredicate("   ")
	require.Error(t, err)
}

func TestFilterAndMatches(t *testing.T) {
	vs := []Version{New("2.5.2"), New("2.6")}
	p, err := ParsePredicate(">= 2.6")
	require.NoError(t, err)
	got := Filter(vs, p)
	require.Len(t, got, 1)
	assert.Equal(t, "2.6", got[0].String())

	p2, err := ParsePredicate("< 2.6")
	require.NoError(t, err)
	got2 := Filter(vs, p2)
	require.Len(t, got2, 1)
	assert.Equal(t, "2.5.2", got2[0].String())
}
