// Package depgraph implements C7: depth-first dependency resolution
// over a product stack and tag registry, per spec.md §4.7. The table
// file format itself is out of scope — callers supply a TableReader.
package depgraph

import (
	"sort"

	"github.com/CraigLoomis/eups/errs"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/version"
)

// EdgeKind distinguishes a required dependency, whose failure to
// resolve aborts the traversal, from an optional one, whose failure
// only prunes that subtree.
type EdgeKind int

const (
	Required EdgeKind = iota
	Optional
)

// Edge is one directive read from a product's table file: a dependency
// on name, optionally pinned to versionSpec (a version.Predicate
// expression; empty means "resolve via preferred tags").
type Edge struct {
	Kind        EdgeKind
	Name        string
	VersionSpec string
}

// TableReader parses a table file into its flattened edge set. The
// resolver never parses table syntax itself — spec.md §1/§6 call this
// out as a black-box contract — so production callers supply their own
// parser here.
type TableReader interface {
	ReadTable(tableFile string) ([]Edge, error)
}

// StaticTableReader is a trivial in-memory TableReader keyed by table
// file path (the TableFile of each product), useful for tests and for callers that have already parsed every
// table file through their own collaborator.
type StaticTableReader map[string][]Edge

func (r StaticTableReader) ReadTable(tableFile string) ([]Edge, error) {
	return r[tableFile], nil
}

// Resolver is the entry for dependency resolution — a TagResolver view
// over whatever product stack and tag registry the caller wires in,
// kept as an interface here so this package never imports stack or tag
// directly.
type Resolver struct {
	Tables       TableReader
	Tags         TagResolver
	Sink         *logctx.Sink
	ConflictWarn bool // true: first-win + warn on version conflict; false: fail with VersionConflict
}

// ResolvedProduct is the minimal product view the resolver consumes,
// satisfied by store.Product.
type ResolvedProduct struct {
	Name      string
	Version   version.Version
	Flavor    string
	DB        string
	TableFile string
}

// TagResolver is what the resolver needs from the product stack and tag
// registry: resolving a versionless edge through the active
// preferred-tag order, or a versioned one exactly. The eups façade
// supplies it as an adapter over its stack and registry.
type TagResolver interface {
	ResolveByPreferred(name string) (ResolvedProduct, bool, error)
	ResolveExact(name, versionExpr string) (ResolvedProduct, bool, error)
}

// Node is one resolved product in the dependency graph, labeled with
// its discovery depth and whether it was reached via a required edge.
type Node struct {
	Product  ResolvedProduct
	Depth    int
	Required bool
}

// DirectedEdge records one traversed dependency in discovery order, the
// shape the topological sorter (C8) consumes.
type DirectedEdge struct {
	From string // "<name>@<version>"
	To   string
}

// Graph is the resolver's output: nodes keyed by "<name>@<version>",
// plus the ordered edge list, per spec.md §4.7 ("edges preserving
// traversal order").
type Graph struct {
	Nodes map[string]Node
	Edges []DirectedEdge
}

func nodeKey(name string, v version.Version) string { return name + "@" + v.String() }

// Resolve performs the depth-first traversal described in spec.md §4.7,
// starting from (rootName, rootVersionExpr). An empty rootVersionExpr
// resolves the root itself through the preferred-tag order. maxDepth <=
// 0 means unbounded.
func (r *Resolver) Resolve(rootName, rootVersionExpr string, maxDepth int) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]Node)}

	root, found, err := r.resolveSpec(rootName, rootVersionExpr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.New(errs.ProductNotFound, "resolveDependencies", "root product %q not found", rootName)
	}

	if err := r.visit(g, root, 0, true, maxDepth); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Resolver) resolveSpec(name, versionExpr string) (ResolvedProduct, bool, error) {
	if versionExpr == "" {
		return r.Tags.ResolveByPreferred(name)
	}
	return r.Tags.ResolveExact(name, versionExpr)
}

func (r *Resolver) visit(g *Graph, p ResolvedProduct, depth int, required bool, maxDepth int) error {
	key := nodeKey(p.Name, p.Version)

	if existing, ok := g.Nodes[key]; ok {
		if existing.Product.Flavor == p.Flavor {
			return nil
		}
		if r.ConflictWarn {
			r.Sink.Warnf("resolveDependencies", "keeping existing binding %s (flavor %s) over conflicting flavor %s", key, existing.Product.Flavor, p.Flavor)
			return nil
		}
		return errs.New(errs.VersionConflict, "resolveDependencies", "%s already resolved to flavor %s, conflicts with %s", key, existing.Product.Flavor, p.Flavor)
	}

	g.Nodes[key] = Node{Product: p, Depth: depth, Required: required}

	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}

	edges, err := r.Tables.ReadTable(p.TableFile)
	if err != nil {
		return errs.Wrap(errs.IOError, "resolveDependencies", err)
	}

	for _, e := range edges {
		dep, found, err := r.resolveSpec(e.Name, e.VersionSpec)
		if err != nil {
			return err
		}
		if !found {
			if e.Kind == Required {
				return errs.New(errs.ProductNotFound, "resolveDependencies", "required dependency %q of %s not found", e.Name, key)
			}
			r.Sink.Warnf("resolveDependencies", "optional dependency %q of %s not found, skipping", e.Name, key)
			continue
		}

		to := nodeKey(dep.Name, dep.Version)
		prev := ""
		for k, n := range g.Nodes {
			if n.Product.Name == dep.Name && k != to {
				prev = k
			}
		}
		if prev != "" {
			if !r.ConflictWarn {
				return errs.New(errs.VersionConflict, "resolveDependencies", "%s requires %s, but %s is already resolved", key, to, prev)
			}
			r.Sink.Warnf("resolveDependencies", "keeping existing binding %s over %s required by %s", prev, to, key)
			g.Edges = append(g.Edges, DirectedEdge{From: key, To: prev})
			continue
		}

		g.Edges = append(g.Edges, DirectedEdge{From: key, To: to})

		if err := r.visit(g, dep, depth+1, e.Kind == Required, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// SortedNodeKeys returns every node key in g, sorted lexically — a
// deterministic iteration order for callers (and tests) that don't need
// discovery order.
func SortedNodeKeys(g *Graph) []string {
	out := make([]string, 0, len(g.Nodes))
	for k := range g.Nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
