// pkg/sitrep/engine.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sitrep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/securingskies/agcs/pkg/geo"
	"github.com/securingskies/agcs/pkg/log"
	"github.com/securingskies/agcs/pkg/telemetry"
)

const (
	DefaultInterval = 45 * time.Second
	MinInterval     = 5 * time.Second

	// ErrorText is emitted verbatim when the model call fails for any
	// reason other than a timeout.
	ErrorText = "SITREP: SYSTEM ERROR. AI UNAVAILABLE."

	// NoUAVText is the mandated phrasing when the sky is empty.
	NoUAVText = "No UAVs active."
)

// Config tunes the report cycle.
type Config struct {
	Interval       time.Duration // clamped to MinInterval
	StaleThreshold time.Duration // default 90s
	HomeLat        float64
	HomeLon        float64
	HomeAltM       float64
}

// Sink receives each emitted report text (console, voice, lighting).
// Sinks must not block; slow consumers drop.
type Sink func(text string)

// Engine runs the report cycle: snapshot, context, model call, audit.
// At most one model call is in flight; ticks that land while a call is
// outstanding are dropped.
type Engine struct {
	fleet   *telemetry.Fleet
	client  Client
	persona Persona
	auditor *Auditor // nil when metrics are disabled
	cfg     Config
	lg      *log.Logger
	now     func() time.Time
	sinks   []Sink

	inFlight atomic.Bool
}

func NewEngine(fleet *telemetry.Fleet, client Client, persona Persona, auditor *Auditor, cfg Config, lg *log.Logger) *Engine {
	if cfg.Interval < MinInterval {
		cfg.Interval = DefaultInterval
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 90 * time.Second
	}
	return &Engine{
		fleet:   fleet,
		client:  client,
		persona: persona,
		auditor: auditor,
		cfg:     cfg,
		lg:      lg,
		now:     time.Now,
	}
}

// AddSink registers an output consumer. Not safe to call after Run.
func (e *Engine) AddSink(s Sink) { e.sinks = append(e.sinks, s) }

// Run fires the report cycle on a fixed interval until ctx is
// cancelled. Each tick runs on its own goroutine so a slow model call
// never stalls the ticker; overlapping ticks are dropped.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			go e.RunTick(ctx)
		}
	}
}

// RunTick executes one report cycle, unless one is already in flight.
// Returns whether the tick ran.
func (e *Engine) RunTick(ctx context.Context) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.lg.Debug("report tick dropped, call in flight")
		return false
	}
	defer e.inFlight.Store(false)

	defer func() {
		if r := recover(); r != nil {
			e.lg.Errorf("panic in report cycle: %v", r)
		}
	}()

	e.tick(ctx)
	return true
}

func (e *Engine) tick(ctx context.Context) {
	start := e.now()
	snap := e.fleet.Snapshot()
	lines := e.BuildContext(snap)

	airborne := false
	for _, a := range snap {
		if a.Kind.Airborne() {
			airborne = true
			break
		}
	}

	// An empty sky needs no inference.
	if len(snap) == 0 {
		e.emit(NoUAVText)
		e.audit(start, lines, NoUAVText)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.client.Timeout())
	defer cancel()

	text, err := e.client.Generate(cctx, e.persona.Prompt, "DATA:\n"+strings.Join(lines, "\n"))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.lg.Warnf("model call timed out after %s, tick skipped", e.client.Timeout())
		return
	case err != nil:
		e.lg.Errorf("model call failed: %v", err)
		e.emit(ErrorText)
		e.audit(start, lines, "")
		return
	}

	// Terminology backstop: an empty sky must be reported as such even
	// if the model ignores its instructions.
	if !airborne && !strings.Contains(strings.ToLower(text), "no uavs active") {
		text = NoUAVText + " " + text
	}

	e.emit(text)
	e.audit(start, lines, text)
}

func (e *Engine) emit(text string) {
	e.lg.Infof("SITREP: %s", text)
	for _, s := range e.sinks {
		s(text)
	}
}

func (e *Engine) audit(start time.Time, lines []string, text string) {
	if e.auditor == nil {
		return
	}
	e.auditor.Record(Evaluate(e.client.Model(), start, e.now(), lines, text))
}

// BuildContext renders one deterministic line per fused asset: the
// ground truth handed to the model and, later, to the auditor.
func (e *Engine) BuildContext(snap []telemetry.Asset) []string {
	now := e.now()

	// The operator's position anchors separation distances.
	var operator *telemetry.Asset
	for i := range snap {
		if snap[i].Kind == telemetry.KindOperator && snap[i].HasFix() {
			operator = &snap[i]
			break
		}
	}

	lines := make([]string, 0, len(snap))
	for i := range snap {
		a := &snap[i]
		var sb strings.Builder

		fmt.Fprintf(&sb, "Asset: %s | Type: %s", a.TID, a.Kind)
		if a.Mode != "" {
			fmt.Fprintf(&sb, " | Mode: %s", a.Mode)
		}

		if a.BatteryPct == telemetry.BatteryUnknown {
			sb.WriteString(" | BATT: Unknown")
		} else {
			fmt.Fprintf(&sb, " | BATT: %d%%", a.BatteryPct)
		}

		fmt.Fprintf(&sb, " | GPS: %s | NAV: %s", gpsGrade(a), a.Nav)

		if a.HasFix() {
			fmt.Fprintf(&sb, " | ALT: %.0fm", a.AltM)
		}
		if a.Kind.Airborne() {
			fmt.Fprintf(&sb, " | SPD: %.1fkm/h", a.HSpeedMps*3.6)
		} else {
			fmt.Fprintf(&sb, " | SPD: %.1fm/s", a.HSpeedMps)
		}

		if a.HasFix() {
			dHome := geo.Distance3D(a.Lat, a.Lon, a.AltM, e.cfg.HomeLat, e.cfg.HomeLon, e.cfg.HomeAltM)
			fmt.Fprintf(&sb, " | HOME: %dm", int(dHome))
			if operator != nil && operator.TID != a.TID {
				dOp := geo.Distance3D(a.Lat, a.Lon, a.AltM, operator.Lat, operator.Lon, operator.AltM)
				fmt.Fprintf(&sb, " | OPERATOR: %dm", int(dOp))
			}
		}

		if len(a.AISightings) > 0 {
			classes := make([]string, 0, len(a.AISightings))
			for c := range a.AISightings {
				classes = append(classes, c)
			}
			sort.Strings(classes)
			parts := make([]string, len(classes))
			for j, c := range classes {
				parts[j] = fmt.Sprintf("%s:%d", c, a.AISightings[c])
			}
			fmt.Fprintf(&sb, " | VISUAL: %s", strings.Join(parts, " "))
		}

		if a.Stale(now, e.cfg.StaleThreshold) {
			fmt.Fprintf(&sb, " | SIGNAL_LOST (%ds)", int(a.Age(now).Seconds()))
		}

		lines = append(lines, sb.String())
	}
	return lines
}

// gpsGrade maps the accuracy estimate to a coarse quality token. Any
// RTK solution grades GOOD regardless of the numeric estimate.
func gpsGrade(a *telemetry.Asset) string {
	if a.Nav.RTK() {
		return "GOOD (RTK)"
	}
	switch {
	case a.AccuracyM < 5:
		return "GOOD"
	case a.AccuracyM < 10:
		return "FAIR"
	default:
		return "POOR"
	}
}

// SetClock replaces the time source. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }
