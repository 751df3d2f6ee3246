// pkg/sitrep/persona.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package sitrep turns periodic fleet snapshots into natural-language
// situation reports via an external language model, and scores each
// report for recall, factuality, hallucination and safety.
package sitrep

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/securingskies/agcs/pkg/log"
)

// maxExemplars caps how many trained few-shot pairs are folded into
// the prompt regardless of how many the optimizer saved.
const maxExemplars = 4

// guardrail is appended to every system prompt, trained or default.
// It pins the terminology the model may use so that ground assets are
// never reported as aircraft and RTK is never invented.
const guardrail = `
STRICT TERMINOLOGY RULES:
- Assets typed GROUND_OPERATOR or GROUND_CONTROLLER are the OPERATOR / GCS. NEVER call them drones.
- Assets typed AIR_UAV_VENDOR_A or AIR_REMOTE_ID are UAV / DRONE.
- Only assert RTK when the asset's NAV field is RTK_FIX, RTK_FLOAT or RTK.
- If no AIR asset is present, your output must state: "No UAVs active."`

var defaultPrompts = map[string]string{
	"pilot": `You are a Co-Pilot. Concise, safety-focused.
PRIORITIES:
1. BATTERY: Warn if below 25%.
2. SIGNAL: Warn immediately on SIGNAL_LOST.
3. VERTICAL SPEED: Report climb/sink rates above 0.5 m/s.
4. IGNORE: Latency metrics, generic location data.
Tone: Urgent, direct, minimal words.`,

	"commander": `You are a Tactical Commander. Situational awareness focused.
PRIORITIES:
1. MOVEMENT: Report who is moving and where (North/South/Hovering).
2. SEPARATION: Report distance between assets and the operator.
3. STATUS: Mobile vs static.
Tone: Calm, authoritative, descriptive.`,

	"analyst": `You are a Forensic Data Scientist.
Grade GPS integrity (GOOD/FAIR/POOR) per asset and summarize the input.
TASK: Analyze the input and provide the report only.`,
}

// Persona is the system-prompt half of every LLM call. It is built
// once at startup and treated as immutable afterwards.
type Persona struct {
	Name   string
	Prompt string // includes the guardrail trailer
}

// Names lists the selectable personas.
func Names() []string { return []string{"pilot", "commander", "analyst"} }

// optimizedFile mirrors the prompt optimizer's saved program: a list
// of telemetry/report exemplar pairs under predict.demos.
type optimizedFile struct {
	Predict struct {
		Demos []struct {
			RawTelemetry string `json:"raw_telemetry"`
			Report       string `json:"report"`
		} `json:"demos"`
	} `json:"predict"`
}

// LoadPersona selects a persona by name and, when a trained prompt
// file optimized_<name>.json exists under dir, folds its exemplars
// into the system prompt. A missing or malformed file falls back to
// the static default. The guardrail trailer is always appended.
func LoadPersona(dir, name string, lg *log.Logger) (Persona, error) {
	name = strings.ToLower(name)
	base, ok := defaultPrompts[name]
	if !ok {
		return Persona{}, fmt.Errorf("unknown persona %q (want one of %s)", name, strings.Join(Names(), ", "))
	}

	path := filepath.Join(dir, "optimized_"+name+".json")
	if prompt, err := trainedPrompt(path, name); err == nil {
		lg.Infof("persona %s: trained prompt loaded from %s", name, path)
		return Persona{Name: name, Prompt: prompt + guardrail}, nil
	} else if !os.IsNotExist(err) {
		lg.Warnf("persona %s: %v; using default prompt", name, err)
	}

	return Persona{Name: name, Prompt: base + guardrail}, nil
}

func trainedPrompt(path, name string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var f optimizedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if len(f.Predict.Demos) == 0 {
		return "", fmt.Errorf("%s: no exemplars", path)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s. Follow these trained examples:\n", strings.ToUpper(name))
	for i, d := range f.Predict.Demos {
		if i == maxExemplars {
			break
		}
		fmt.Fprintf(&sb, "DATA: %s\nREPORT: %s\n---\n", d.RawTelemetry, d.Report)
	}
	sb.WriteString("Now generate the REPORT for the current DATA.")
	return sb.String(), nil
}
