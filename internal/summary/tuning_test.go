package summary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTuningEmptyPath(t *testing.T) {
	tn, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tn)
}

func TestLoadTuningOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	overlay := "health_base: 60\nttl_busy_factor: 0.25\n"
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	tn, err := LoadTuning(path)
	require.NoError(t, err)

	// Overridden knobs change, everything else keeps its default.
	assert.Equal(t, 60.0, tn.HealthBase)
	assert.Equal(t, 0.25, tn.TTLBusyFactor)
	assert.Equal(t, DefaultTuning().HealthProgressWeight, tn.HealthProgressWeight)
	assert.Equal(t, DefaultTuning().TTLBusyThreshold, tn.TTLBusyThreshold)
}

func TestLoadTuningMissingFile(t *testing.T) {
	tn, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Equal(t, DefaultTuning(), tn, "defaults still returned on error")
}

func TestLoadTuningMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("health_base: [not a number"), 0o644))

	_, err := LoadTuning(path)
	assert.Error(t, err)
}
