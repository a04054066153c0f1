// Package flavor implements C2: determining the running platform
// flavor and maintaining ordered fallback chains, per spec.md §4.2.
package flavor

import (
	"runtime"
	"strings"
	"sync"

	"github.com/CraigLoomis/eups/envctx"
)

// Generic is the wildcard flavor: it always matches as a last resort,
// regardless of the primary flavor or any configured fallback chain.
const Generic = "Generic"

// noneKey is the fallback-chain key used when no flavor-specific
// fallback has been configured; spec.md §4.2 calls this "None/default".
const noneKey = ""

// Resolver holds the per-flavor fallback chains. The zero value has an
// empty chain for every flavor except an implicit trailing Generic,
// which Chain always appends regardless of configuration.
type Resolver struct {
	mu        sync.RWMutex
	fallbacks map[string][]string
}

// NewResolver returns a Resolver seeded with no fallback chains beyond
// the implicit trailing Generic.
func NewResolver() *Resolver {
	return &Resolver{fallbacks: make(map[string][]string)}
}

// SetFallbacks configures the ordered list of alternate flavors to
// consult when flavor has no match. Passing "" as flavor sets the
// default chain used for any flavor without its own entry.
func (r *Resolver) SetFallbacks(flavor string, chain []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[flavor] = append([]string(nil), chain...)
}

// Chain returns the ordered list of flavors to try for flavor: flavor
// itself, then its configured fallback list (or the default list if
// none is configured for it), then Generic if not already present.
func (r *Resolver) Chain(flav string) []string {
	r.mu.RLock()
	fb, ok := r.fallbacks[flav]
	if !ok {
		fb = r.fallbacks[noneKey]
	}
	r.mu.RUnlock()

	seen := make(map[string]bool, len(fb)+2)
	out := make([]string, 0, len(fb)+2)
	add := func(f string) {
		if f != "" && !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	add(flav)
	for _, f := range fb {
		add(f)
	}
	add(Generic)
	return out
}

// Determine returns the running flavor: EUPS_FLAVOR from env if set,
// else derived from GOOS/GOARCH following spec.md §4.2 (Linux ->
// Linux/Linux64, Darwin -> Darwin/DarwinX86).
func Determine(env *envctx.Environment) string {
	if env != nil {
		if v, ok := env.Get(envctx.VarFlavor); ok && v != "" {
			return v
		}
	}
	return determineFromRuntime()
}

func determineFromRuntime() string {
	switch runtime.GOOS {
	case "linux":
		if is64BitArch(runtime.GOARCH) {
			return "Linux64"
		}
		return "Linux"
	case "darwin":
		if strings.HasSuffix(runtime.GOARCH, "386") {
			return "DarwinX86"
		}
		return "Darwin"
	default:
		return Generic
	}
}

func is64BitArch(arch string) bool {
	switch arch {
	case "amd64", "arm64", "ppc64", "ppc64le", "mips64", "mips64le", "riscv64":
		return true
	default:
		return false
	}
}
