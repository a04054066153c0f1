// Package eups implements C9: the façade binding the version, flavor,
// store, cache, tag, stack, dependency, and topological-sort packages
// into the operations spec.md §4.9 names — findProduct, findProducts,
// declare, undeclare, assignTag, unassignTag, setup, unsetup — plus the
// supplemental read-only conveniences preserved from
// original_source/bin/eups.py.
package eups

import (
	"fmt"
	"os"
	"strings"

	"github.com/CraigLoomis/eups/depgraph"
	"github.com/CraigLoomis/eups/envctx"
	"github.com/CraigLoomis/eups/errs"
	"github.com/CraigLoomis/eups/flavor"
	"github.com/CraigLoomis/eups/logctx"
	"github.com/CraigLoomis/eups/siteconfig"
	"github.com/CraigLoomis/eups/stack"
	"github.com/CraigLoomis/eups/store"
	"github.com/CraigLoomis/eups/tag"
	"github.com/CraigLoomis/eups/toposort"
	"github.com/CraigLoomis/eups/version"
)

// Eups is the single entry point a caller embeds: one product stack,
// one tag registry, one flavor resolver, bound to one environment.
type Eups struct {
	Stack       *stack.ProductStack
	Tags        *tag.Registry
	Flavors     *flavor.Resolver
	Env         *envctx.Environment
	Site        *siteconfig.Config
	Sink        *logctx.Sink
	CyclePolicy toposort.Policy
}

// New builds an Eups from env (read for EUPS_PATH/EUPS_FLAVOR/EUPS_USERDATA)
// and an optional site config (pass siteconfig.Default() for built-in
// defaults). It loads every db's cache and seeds the tag registry with
// whatever tags were discovered on disk.
func New(env *envctx.Environment, site *siteconfig.Config, sink *logctx.Sink) (*Eups, error) {
	if site == nil {
		site = siteconfig.Default()
	}
	if sink == nil {
		sink = logctx.Discard()
	}

	flavors := flavor.NewResolver()
	for flav, chain := range site.Flavors {
		flavors.SetFallbacks(flav, chain)
	}

	flav := flavor.Determine(env)
	st, err := stack.NewFromEnv(env, flav, sink)
	if err != nil {
		return nil, err
	}

	tags := tag.NewRegistry(sink)
	for _, c := range st.Caches() {
		for tagName := range c.Tags {
			tags.Recognize(tagName)
		}
	}
	tags.SetPreferredTagsFiltering(site.PreferredTags)

	return &Eups{
		Stack:       st,
		Tags:        tags,
		Flavors:     flavors,
		Env:         env,
		Site:        site,
		Sink:        sink,
		CyclePolicy: toposort.DefaultPolicy,
	}, nil
}

// flavorOrDefault returns flav if non-empty, else the stack's flavor.
func (e *Eups) flavorOrDefault(flav string) string {
	if flav != "" {
		return flav
	}
	return e.Stack.Flavor()
}

// FindProduct returns the single best match for name, per spec.md §4.9.
// An empty versionExpr resolves name through the preferred-tag order,
// falling back to "newest" if no preferred tag binds it; a non-empty
// versionExpr is parsed as a predicate and the highest version
// satisfying it is returned.
func (e *Eups) FindProduct(name, versionExpr, flav string) (store.Product, bool, error) {
	flav = e.flavorOrDefault(flav)

	if versionExpr != "" {
		pred, err := version.ParsePredicate(versionExpr)
		if err != nil {
			return store.Product{}, false, err
		}
		var candidates []version.Version
		for _, p := range e.Stack.Versions(name) {
			if p.Flavor != flav && p.Flavor != flavor.Generic {
				continue
			}
			if pred.Matches(p.Version) {
				candidates = append(candidates, p.Version)
			}
		}
		best, ok := version.Max(candidates)
		if !ok {
			return store.Product{}, false, nil
		}
		p, ok := e.Stack.Get(name, best.String())
		return p, ok, nil
	}

	for _, t := range e.Tags.PreferredTags() {
		v, _, found, err := e.Tags.Resolve(t, name, e.Stack.Caches(), e.Stack.UserDataDir(), flav)
		if err != nil {
			continue
		}
		if found {
			if p, ok := e.Stack.Get(name, v.String()); ok {
				return p, true, nil
			}
		}
	}
	if v, ok := e.Stack.Newest(name); ok {
		if p, ok := e.Stack.Get(name, v.String()); ok {
			return p, true, nil
		}
	}
	return store.Product{}, false, nil
}

// FindProductByTag returns the product tagName currently binds name to,
// per spec.md §8 scenario 1 ("findProduct(python, tag=newest)").
func (e *Eups) FindProductByTag(name, tagName, flav string) (store.Product, bool, error) {
	flav = e.flavorOrDefault(flav)
	v, _, found, err := e.Tags.Resolve(tagName, name, e.Stack.Caches(), e.Stack.UserDataDir(), flav)
	if err != nil {
		return store.Product{}, false, err
	}
	if !found {
		return store.Product{}, false, nil
	}
	p, ok := e.Stack.Get(name, v.String())
	return p, ok, nil
}

// FindProducts enumerates every match, per spec.md §4.9 and §4.6. tags,
// when non-empty, restricts to products bound to ANY of the named tags
// ("setup" is special-cased against the live environment rather than a
// chain file).
func (e *Eups) FindProducts(nameGlob, versionGlob string, tags []string, flavors []string) ([]store.Product, error) {
	products, err := e.Stack.FindProducts(nameGlob, versionGlob, flavors)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return products, nil
	}

	out := products[:0]
	for _, p := range products {
		if e.matchesAnyTag(p, tags) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (e *Eups) matchesAnyTag(p store.Product, tags []string) bool {
	for _, t := range tags {
		if t == tag.Setup {
			if e.isSetupEnv(p) {
				return true
			}
			continue
		}
		v, _, found, err := e.Tags.Resolve(t, p.Name, e.Stack.Caches(), e.Stack.UserDataDir(), p.Flavor)
		if err == nil && found && v.Equal(p.Version) {
			return true
		}
	}
	return false
}

// isSetupEnv reports whether p matches the live SETUP_<NAME> descriptor
// in e.Env, per spec.md §6's descriptor format.
func (e *Eups) isSetupEnv(p store.Product) bool {
	raw, ok := e.Env.Get(envctx.SetupVar(p.Name))
	if !ok {
		return false
	}
	fields := strings.Fields(raw)
	if len(fields) < 4 {
		return false
	}
	return fields[0] == p.Name && fields[3] == p.Version.String()
}

// Declare inserts or updates a product, per spec.md §4.9 and §8 scenario
// 4. Redeclaring with a different productDir or tableFile requires
// force; otherwise it fails with AlreadyDeclared.
func (e *Eups) Declare(name, ver, productDir, tableFile string, tagName string, force bool) error {
	db, ok := e.Stack.WritableDBFor(name)
	if !ok {
		return errs.New(errs.IOError, "declare", "no writable database root for %q", name)
	}

	existing, found := e.Stack.Get(name, ver)
	if found && !force && (existing.Dir != productDir || existing.TableFile != tableFile) {
		return errs.New(errs.AlreadyDeclared, "declare", "%s@%s already declared with dir=%q tableFile=%q; force=true required to change", name, ver, existing.Dir, existing.TableFile)
	}

	if err := os.MkdirAll(store.ProductDir(db, name), 0o755); err != nil {
		return errs.Wrap(errs.IOError, "declare", err)
	}
	path := store.VersionFilePath(db, name, version.New(ver))
	records, err := store.ReadVersionFile(path, e.Sink)
	if err != nil {
		return errs.Wrap(errs.IOError, "declare", err)
	}
	if records == nil {
		records = make(map[string]store.Record)
	}
	flav := e.Stack.Flavor()
	records[flav] = store.Record{Flavor: flav, Dir: productDir, TableFile: tableFile}
	if err := store.WriteVersionFile(path, records); err != nil {
		return errs.Wrap(errs.IOError, "declare", err)
	}

	if err := e.Stack.Rebuild(); err != nil {
		return err
	}

	if tagName != "" {
		return e.Tags.AssignTag(tagName, name, flav, version.New(ver), tag.Global, db, e.Stack.UserDataDir())
	}
	return nil
}

// Undeclare removes a product version, or just a tag binding if tagName
// is given. Calling Undeclare(name, "", ...) with more than one declared
// version present fails with RuntimeError, per spec.md §4.9/§8 scenario 4.
func (e *Eups) Undeclare(name, ver, tagName string) error {
	if tagName != "" {
		db, ok := e.Stack.WritableDBFor(name)
		if !ok {
			return errs.New(errs.IOError, "undeclare", "no writable database root for %q", name)
		}
		known := e.Stack.Known(db, name)
		return e.Tags.UnassignTag(tagName, name, e.Stack.Flavor(), version.New(ver), tag.Global, db, e.Stack.UserDataDir(), known)
	}

	if ver == "" {
		versions := e.Stack.Versions(name)
		if len(versions) == 0 {
			return errs.New(errs.ProductNotFound, "undeclare", "product %q not found", name)
		}
		if len(versions) > 1 {
			return errs.New(errs.RuntimeError, "undeclare", "ambiguous undeclare: %q has %d declared versions", name, len(versions))
		}
		ver = versions[0].Version.String()
	}

	db, ok := e.Stack.WritableDBFor(name)
	if !ok {
		return errs.New(errs.IOError, "undeclare", "no writable database root for %q", name)
	}
	path := store.VersionFilePath(db, name, version.New(ver))
	records, err := store.ReadVersionFile(path, e.Sink)
	if err != nil {
		return errs.Wrap(errs.IOError, "undeclare", err)
	}
	delete(records, e.Stack.Flavor())
	if err := store.WriteVersionFile(path, records); err != nil {
		return errs.Wrap(errs.IOError, "undeclare", err)
	}
	return e.Stack.Rebuild()
}

// AssignTag delegates to the tag registry against the writable db
// already holding name.
func (e *Eups) AssignTag(tagName, name, ver string, scope tag.Scope) error {
	db, ok := e.Stack.WritableDBFor(name)
	if !ok {
		return errs.New(errs.IOError, "assignTag", "no writable database root for %q", name)
	}
	err := e.Tags.AssignTag(tagName, name, e.Stack.Flavor(), version.New(ver), scope, db, e.Stack.UserDataDir())
	if err != nil {
		return err
	}
	return e.Stack.Rebuild()
}

// UnassignTag delegates to the tag registry; ver may be empty to remove
// the binding regardless of its current version.
func (e *Eups) UnassignTag(tagName, name, ver string, scope tag.Scope) error {
	db, ok := e.Stack.WritableDBFor(name)
	if !ok {
		return errs.New(errs.IOError, "unassignTag", "no writable database root for %q", name)
	}
	known := e.Stack.Known(db, name)
	err := e.Tags.UnassignTag(tagName, name, e.Stack.Flavor(), version.New(ver), scope, db, e.Stack.UserDataDir(), known)
	if err != nil {
		return err
	}
	return e.Stack.Rebuild()
}

// Descriptor is the parsed form of a SETUP_<NAME> environment value, per
// spec.md §6: "<name> <flavor> -g <version> -Z <db>".
type Descriptor struct {
	Name    string
	Flavor  string
	Version string
	DB      string
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s -g %s -Z %s", d.Name, d.Flavor, d.Version, d.DB)
}

func parseDescriptor(raw string) (Descriptor, bool) {
	fields := strings.Fields(raw)
	if len(fields) < 6 {
		return Descriptor{}, false
	}
	return Descriptor{Name: fields[0], Flavor: fields[1], Version: fields[3], DB: fields[5]}, true
}

// Setup resolves name (via versionExpr, or the preferred-tag order if
// empty), orders its dependency-first closure with C7/C8, and writes a
// <NAME>_DIR/SETUP_<NAME> descriptor into env for every node, in
// dependency-first order, per spec.md §4.9.
func (e *Eups) Setup(env *envctx.Environment, name, versionExpr string, tables depgraph.TableReader) error {
	p, found, err := e.FindProduct(name, versionExpr, "")
	if err != nil {
		return err
	}
	if !found {
		return errs.New(errs.ProductNotFound, "setup", "%q not found", name)
	}

	resolver := &depgraph.Resolver{
		Tables: tables,
		Tags:   &facadeTagResolver{e: e},
		Sink:   e.Sink,
	}
	g, err := resolver.Resolve(p.Name, p.Version.String(), 0)
	if err != nil {
		return err
	}

	graph := make(map[string][]string, len(g.Nodes))
	for key := range g.Nodes {
		graph[key] = nil
	}
	for _, edge := range g.Edges {
		graph[edge.From] = append(graph[edge.From], edge.To)
	}

	groups, err := toposort.Sort(graph, e.CyclePolicy)
	if err != nil {
		return err
	}

	for _, group := range groups {
		if group.Cyclic {
			e.Sink.Warnf("setup", "cyclic dependency group treated as one unit: %v", group.Nodes)
		}
		for _, key := range group.Nodes {
			node := g.Nodes[key]
			rp := node.Product
			desc := Descriptor{Name: rp.Name, Flavor: rp.Flavor, Version: rp.Version.String(), DB: rp.DB}
			if rp.DB == "" {
				if pp, ok := e.Stack.Get(rp.Name, rp.Version.String()); ok {
					desc.DB = pp.DB
				}
			}
			env.Set(envctx.SetupVar(rp.Name), desc.String())
			if pp, ok := e.Stack.Get(rp.Name, rp.Version.String()); ok && pp.HasDir() {
				env.Set(envctx.DirVar(rp.Name), pp.Dir)
			}
		}
	}
	return nil
}

// Unsetup inverts Setup: it recovers name's descriptor from
// SETUP_<NAME> and clears both environment outputs.
func (e *Eups) Unsetup(env *envctx.Environment, name string) error {
	raw, ok := env.Get(envctx.SetupVar(name))
	if !ok {
		return errs.New(errs.ProductNotFound, "unsetup", "%q is not setup", name)
	}
	if _, ok := parseDescriptor(raw); !ok {
		return errs.New(errs.RuntimeError, "unsetup", "malformed SETUP_%s descriptor %q", strings.ToUpper(name), raw)
	}
	env.Unset(envctx.SetupVar(name))
	env.Unset(envctx.DirVar(name))
	return nil
}

// List is a thin convenience matching the original `eups list`.
func (e *Eups) List(nameGlob, versionGlob, flav string) ([]store.Product, error) {
	var flavors []string
	if flav != "" {
		flavors = []string{flav}
	}
	return e.Stack.FindProducts(nameGlob, versionGlob, flavors)
}

// Dependencies exposes C7's output directly, matching eups.py:dependencies.
func (e *Eups) Dependencies(name, versionExpr string, maxDepth int, tables depgraph.TableReader) (*depgraph.Graph, error) {
	resolver := &depgraph.Resolver{
		Tables: tables,
		Tags:   &facadeTagResolver{e: e},
		Sink:   e.Sink,
	}
	return resolver.Resolve(name, versionExpr, maxDepth)
}

// IsSetup reports whether name (at version, if given) is currently
// setup in env.
func (e *Eups) IsSetup(env *envctx.Environment, name, ver string) bool {
	raw, ok := env.Get(envctx.SetupVar(name))
	if !ok {
		return false
	}
	d, ok := parseDescriptor(raw)
	if !ok {
		return false
	}
	return ver == "" || d.Version == ver
}

// IsCurrent reports whether (name, ver) is the product bound to the
// "current" tag.
func (e *Eups) IsCurrent(name, ver string) bool {
	v, _, found, err := e.Tags.Resolve("current", name, e.Stack.Caches(), e.Stack.UserDataDir(), e.Stack.Flavor())
	return err == nil && found && v.String() == ver
}

// facadeTagResolver adapts *Eups to depgraph.TagResolver without the
// depgraph package importing stack or tag.
type facadeTagResolver struct {
	e *Eups
}

func (f *facadeTagResolver) ResolveByPreferred(name string) (depgraph.ResolvedProduct, bool, error) {
	p, found, err := f.e.FindProduct(name, "", "")
	if err != nil || !found {
		return depgraph.ResolvedProduct{}, false, err
	}
	return toResolved(p), true, nil
}

func (f *facadeTagResolver) ResolveExact(name, versionExpr string) (depgraph.ResolvedProduct, bool, error) {
	p, found, err := f.e.FindProduct(name, versionExpr, "")
	if err != nil || !found {
		return depgraph.ResolvedProduct{}, false, err
	}
	return toResolved(p), true, nil
}

func toResolved(p store.Product) depgraph.ResolvedProduct {
	return depgraph.ResolvedProduct{
		Name: p.Name, Version: p.Version, Flavor: p.Flavor, DB: p.DB, TableFile: p.TableFile,
	}
}
