// Package envctx models the environment inputs and outputs described in
// spec.md §6 as an explicit, mutable value instead of implicit
// os.Environ mutation, per the Design Note in spec.md §9 ("Global
// mutable state"). eups.Eups.Setup/Unsetup take an *Environment so a
// caller can target the real process environment, a sub-shell script
// buffer, or a test fixture with the same code path.
package envctx

import (
	"os"
	"strings"
	"sync"
)

const (
	// VarPath is EUPS_PATH: a colon-separated list of database roots,
	// in priority order.
	VarPath = "EUPS_PATH"
	// VarFlavor is EUPS_FLAVOR: overrides flavor detection.
	VarFlavor = "EUPS_FLAVOR"
	// VarUserData is EUPS_USERDATA: the user-scope data directory.
	VarUserData = "EUPS_USERDATA"
)

// Environment is a pure, explicit model of the named environment
// variables spec.md §6 reads and writes. Readers never have side
// effects; Set/Unset mutate only this value, never the real process
// environment, unless the Environment was built with FromOS and the
// caller separately calls Sync.
type Environment struct {
	mu   sync.RWMutex
	vars map[string]string
}

// New returns an empty Environment.
func New() *Environment {
	return &Environment{vars: make(map[string]string)}
}

// FromOS snapshots the current process environment. Mutations to the
// returned Environment do not propagate back to the process; call Sync
// to push them out explicitly.
func FromOS() *Environment {
	e := New()
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			e.vars[kv[:i]] = kv[i+1:]
		}
	}
	return e
}

// Get returns the value of name and whether it was set.
func (e *Environment) Get(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[name]
	return v, ok
}

// Set assigns name to value.
func (e *Environment) Set(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
}

// Unset removes name, if present.
func (e *Environment) Unset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// Path returns the colon-separated EUPS_PATH entries, in priority
// order, with empty segments dropped.
func (e *Environment) Path() []string {
	raw, _ := e.Get(VarPath)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, string(os.PathListSeparator)) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DirVar is the name of the <NAME>_DIR output variable for product
// name, e.g. "python" -> "PYTHON_DIR".
func DirVar(product string) string {
	return strings.ToUpper(product) + "_DIR"
}

// SetupVar is the name of the SETUP_<NAME> marker/descriptor variable,
// e.g. "python" -> "SETUP_PYTHON".
func SetupVar(product string) string {
	return "SETUP_" + strings.ToUpper(product)
}

// Sync writes every variable in e into the real process environment via
// os.Setenv. It never removes process variables absent from e; callers
// that need Unset to reach the process environment should call
// os.Unsetenv themselves, keeping this type's default behavior purely
// in-memory.
func (e *Environment) Sync() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for k, v := range e.vars {
		os.Setenv(k, v)
	}
}

// Snapshot returns a copy of every variable currently set, for tests
// and for diagnostics.
func (e *Environment) Snapshot() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
