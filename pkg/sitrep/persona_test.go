// pkg/sitrep/persona_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sitrep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securingskies/agcs/pkg/log"
)

func TestLoadPersonaDefaults(t *testing.T) {
	for _, name := range Names() {
		p, err := LoadPersona(t.TempDir(), name, log.NewDiscard())
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name)
		assert.Contains(t, p.Prompt, "No UAVs active", "guardrail trailer always present")
		assert.Contains(t, p.Prompt, "NEVER call them drones")
	}

	_, err := LoadPersona(t.TempDir(), "skynet", log.NewDiscard())
	assert.Error(t, err)
}

func TestLoadPersonaTrained(t *testing.T) {
	dir := t.TempDir()
	trained := `{"predict": {"demos": [
		{"raw_telemetry": "UAV-1479 | BATT: 59%", "report": "Asset: UAV-1479 nominal"},
		{"raw_telemetry": "d2", "report": "r2"},
		{"raw_telemetry": "d3", "report": "r3"},
		{"raw_telemetry": "d4", "report": "r4"},
		{"raw_telemetry": "d5", "report": "r5"}
	]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "optimized_pilot.json"), []byte(trained), 0o644))

	p, err := LoadPersona(dir, "pilot", log.NewDiscard())
	require.NoError(t, err)
	assert.Contains(t, p.Prompt, "You are the PILOT. Follow these trained examples:")
	assert.Contains(t, p.Prompt, "DATA: UAV-1479 | BATT: 59%")
	assert.Contains(t, p.Prompt, "REPORT: Asset: UAV-1479 nominal")
	assert.Contains(t, p.Prompt, "d4", "fourth exemplar kept")
	assert.NotContains(t, p.Prompt, "d5", "exemplars capped")
	assert.Contains(t, p.Prompt, "No UAVs active", "guardrail follows trained prompt")
}

func TestLoadPersonaMalformedFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "optimized_commander.json"), []byte(`{broken`), 0o644))

	p, err := LoadPersona(dir, "commander", log.NewDiscard())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Prompt, "You are a Tactical Commander"))

	// Empty demo list is treated the same as a malformed file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "optimized_analyst.json"),
		[]byte(`{"predict": {"demos": []}}`), 0o644))
	p, err = LoadPersona(dir, "analyst", log.NewDiscard())
	require.NoError(t, err)
	assert.Contains(t, p.Prompt, "Forensic Data Scientist")
}
