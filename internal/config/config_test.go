package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithOverridesAppliesAndValidates(t *testing.T) {
	cfg := Default()

	out, err := cfg.WithOverrides(map[string]any{
		"nr_procs":             "64",
		"default_quantum_size": "4",
	})
	require.NoError(t, err)
	require.Equal(t, 64, out.NrProcs)
	require.Equal(t, 4, out.DefaultQuantumSize)

	// The base config is untouched.
	require.Equal(t, Default().NrProcs, cfg.NrProcs)
}

func TestWithOverridesRejectsInvalidResult(t *testing.T) {
	cfg := Default()

	_, err := cfg.WithOverrides(map[string]any{"idle_q": "999"})
	require.Error(t, err)
}

func TestWithOverridesNoopOnEmptyMap(t *testing.T) {
	cfg := Default()

	out, err := cfg.WithOverrides(nil)
	require.NoError(t, err)
	require.Equal(t, cfg, out)
}
