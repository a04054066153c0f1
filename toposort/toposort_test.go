package toposort

import (
	"testing"

	"github.com/CraigLoomis/eups/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatten(groups []Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.Nodes...)
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestLinearChainOrdersDependenciesFirst(t *testing.T) {
	// app depends on lib depends on runtime.
	graph := map[string][]string{
		"app":     {"lib"},
		"lib":     {"runtime"},
		"runtime": {},
	}
	groups, err := Sort(graph, DefaultPolicy)
	require.NoError(t, err)

	order := flatten(groups)
	assert.Less(t, indexOf(order, "runtime"), indexOf(order, "lib"))
	assert.Less(t, indexOf(order, "lib"), indexOf(order, "app"))
}

func TestDiamondGraph(t *testing.T) {
	graph := map[string][]string{
		"app":    {"left", "right"},
		"left":   {"common"},
		"right":  {"common"},
		"common": {},
	}
	groups, err := Sort(graph, DefaultPolicy)
	require.NoError(t, err)

	order := flatten(groups)
	require.Len(t, order, 4)
	assert.Less(t, indexOf(order, "common"), indexOf(order, "left"))
	assert.Less(t, indexOf(order, "common"), indexOf(order, "right"))
	assert.Less(t, indexOf(order, "left"), indexOf(order, "app"))
	assert.Less(t, indexOf(order, "right"), indexOf(order, "app"))
}

func TestCycleWarnsAndCollapsesIntoOneGroup(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	}
	groups, err := Sort(graph, Policy{OnCycle: Warn})
	require.NoError(t, err)

	var cyclic *Group
	for i := range groups {
		if groups[i].Cyclic {
			cyclic = &groups[i]
		}
	}
	require.NotNil(t, cyclic)
	assert.Equal(t, []string{"a", "b", "c"}, cyclic.Nodes)

	order := flatten(groups)
	assert.Less(t, indexOf(order, "a"), indexOf(order, "d"))
}

func TestCycleFailsWhenPolicyIsFail(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	_, err := Sort(graph, Policy{OnCycle: Fail})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CyclicDependency))
}

func TestSelfDependencyIsNotACycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"a", "b"},
		"b": {},
	}
	groups, err := Sort(graph, DefaultPolicy)
	require.NoError(t, err)
	for _, g := range groups {
		assert.False(t, g.Cyclic)
	}
}

func TestDisconnectedNodesAllAppear(t *testing.T) {
	graph := map[string][]string{
		"a": {},
		"b": {},
		"c": {},
	}
	groups, err := Sort(graph, DefaultPolicy)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, flatten(groups))
}
