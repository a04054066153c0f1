package flavor

import (
	"testing"

	"github.com/CraigLoomis/eups/envctx"
	"github.com/stretchr/testify/assert"
)

func TestDetermineHonorsEnvOverride(t *testing.T) {
	env := envctx.New()
	env.Set(envctx.VarFlavor, "Linux64")
	assert.Equal(t, "Linux64", Determine(env))
}

func TestDetermineFallsBackToRuntime(t *testing.T) {
	got := Determine(nil)
	assert.NotEmpty(t, got)
}

func TestChainAlwaysEndsWithGeneric(t *testing.T) {
	r := NewResolver()
	chain := r.Chain("Linux64")
	assert.Equal(t, []string{"Linux64", Generic}, chain)
}

func TestChainUsesConfiguredFallback(t *testing.T) {
	r := NewResolver()
	r.SetFallbacks("Linux64", []string{"Linux"})
	chain := r.Chain("Linux64")
	assert.Equal(t, []string{"Linux64", "Linux", Generic}, chain)
}

func TestChainUsesDefaultFallbackWhenUnconfigured(t *testing.T) {
	r := NewResolver()
	r.SetFallbacks("", []string{"Generic"})
	chain := r.Chain("Solaris")
	assert.Equal(t, []string{"Solaris", Generic}, chain)
}

func TestChainDeduplicates(t *testing.T) {
	r := NewResolver()
	r.SetFallbacks("Linux64", []string{"Generic", "Linux"})
	chain := r.Chain("Linux64")
	assert.Equal(t, []string{"Linux64", Generic, "Linux"}, chain)
}
