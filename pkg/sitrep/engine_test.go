// pkg/sitrep/engine_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sitrep

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securingskies/agcs/pkg/log"
	"github.com/securingskies/agcs/pkg/telemetry"
)

type fakeClient struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	timeout time.Duration
	calls   int
	lastSys string
	lastUsr string
}

func (f *fakeClient) Generate(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSys, f.lastUsr = system, user
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeClient) Model() string { return "fake" }

func (f *fakeClient) Timeout() time.Duration {
	if f.timeout > 0 {
		return f.timeout
	}
	return time.Second
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureSink struct {
	mu    sync.Mutex
	texts []string
}

func (c *captureSink) sink(text string) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
}

func (c *captureSink) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.texts...)
}

func newTestEngine(f *telemetry.Fleet, c Client) (*Engine, *captureSink) {
	e := NewEngine(f, c, Persona{Name: "pilot", Prompt: "test" + guardrail}, nil,
		Config{HomeLat: 60.3195, HomeLon: 24.8310, HomeAltM: 115}, log.NewDiscard())
	cs := &captureSink{}
	e.AddSink(cs.sink)
	return e, cs
}

func rtkFleet() *telemetry.Fleet {
	f := telemetry.NewFleet()
	var dec telemetry.AutelDecoder
	updates, _ := dec.Decode("thing/product/AAAA1234/osd",
		[]byte(`{"data": {"drone_list": [{"sn": "XYZ1234", "latitude": 60.3195, "longitude": 24.8310,
			"height": 100, "battery": {"capacity_percent": 59},
			"position_state": {"rtk_used": 1, "is_fixed": 3, "rtk_number": 18}}]}}`))
	for _, u := range updates {
		f.ApplyUpdate(u)
	}
	return f
}

func TestContextRTKGrade(t *testing.T) {
	e, _ := newTestEngine(rtkFleet(), &fakeClient{})

	lines := e.BuildContext(e.fleetSnapshot())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Asset: UAV-1234")
	assert.Contains(t, lines[0], "GPS: GOOD (RTK)")
	assert.Contains(t, lines[0], "NAV: RTK_FIX")
	assert.Contains(t, lines[0], "BATT: 59%")
	assert.Contains(t, lines[0], "ALT: 100m")
}

func TestContextGrades(t *testing.T) {
	for _, tc := range []struct {
		acc   float64
		nav   telemetry.NavSource
		grade string
	}{
		{3.0, telemetry.NavGPS3D, "GPS: GOOD |"},
		{7.0, telemetry.NavGPS, "GPS: FAIR |"},
		{15.0, telemetry.NavGPS, "GPS: POOR |"},
		{15.0, telemetry.NavRTKFloat, "GPS: GOOD (RTK) |"},
	} {
		f := telemetry.NewFleet()
		f.ApplyUpdate(telemetry.Update{
			TID: "UAV-0001", Kind: telemetry.KindUAV,
			Nav: tc.nav, AccuracyM: &tc.acc,
		})
		e, _ := newTestEngine(f, &fakeClient{})
		lines := e.BuildContext(e.fleetSnapshot())
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], tc.grade, "acc=%v nav=%v", tc.acc, tc.nav)
	}
}

func TestContextSpeedUnitsAndDistances(t *testing.T) {
	f := telemetry.NewFleet()
	spd := 5.0
	f.ApplyUpdate(telemetry.Update{
		TID: "UAV-0001", Kind: telemetry.KindUAV,
		Lat: ptrF(60.3205), Lon: ptrF(24.8310), AltM: ptrF(115.0), HSpeedMps: &spd,
	})
	opSpd := 1.5
	f.ApplyUpdate(telemetry.Update{
		TID: "RW", Kind: telemetry.KindOperator,
		Lat: ptrF(60.3195), Lon: ptrF(24.8310), AltM: ptrF(115.0), HSpeedMps: &opSpd,
	})

	e, _ := newTestEngine(f, &fakeClient{})
	lines := e.BuildContext(e.fleetSnapshot())
	require.Len(t, lines, 2)

	var air, ground string
	for _, l := range lines {
		if strings.Contains(l, "UAV-0001") {
			air = l
		} else {
			ground = l
		}
	}
	assert.Contains(t, air, "SPD: 18.0km/h", "airborne speed renders in km/h")
	assert.Contains(t, ground, "SPD: 1.5m/s", "ground speed stays in m/s")
	assert.Contains(t, air, "HOME: 111m", "about 0.001 deg of latitude")
	assert.Contains(t, air, "OPERATOR: 111m")
	assert.NotContains(t, ground, "OPERATOR:", "the operator has no distance to itself")
}

func TestContextBatteryUnknownAndStale(t *testing.T) {
	f := telemetry.NewFleet()
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f.SetClock(func() time.Time { return start })
	batt := telemetry.BatteryUnknown
	f.ApplyUpdate(telemetry.Update{TID: "TAG-9999", Kind: telemetry.KindRemoteID, BatteryPct: &batt})

	e, _ := newTestEngine(f, &fakeClient{})
	e.SetClock(func() time.Time { return start.Add(95 * time.Second) })

	lines := e.BuildContext(e.fleetSnapshot())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "BATT: Unknown")
	assert.Contains(t, lines[0], "SIGNAL_LOST (95s)")
}

func TestTickEmptyFleetSkipsModel(t *testing.T) {
	fc := &fakeClient{text: "should not be used"}
	e, cs := newTestEngine(telemetry.NewFleet(), fc)

	require.True(t, e.RunTick(context.Background()))
	assert.Equal(t, 0, fc.callCount())
	assert.Equal(t, []string{NoUAVText}, cs.all())
}

func TestTickGroundOnlyEnforcesNoUAVPhrase(t *testing.T) {
	f := telemetry.NewFleet()
	f.ApplyUpdate(telemetry.Update{TID: "RW", Kind: telemetry.KindOperator})

	fc := &fakeClient{text: "Operator RW nominal."}
	e, cs := newTestEngine(f, fc)
	require.True(t, e.RunTick(context.Background()))

	out := cs.all()
	require.Len(t, out, 1)
	assert.Contains(t, strings.ToLower(out[0]), "no uavs active")
	assert.Contains(t, out[0], "Operator RW nominal.")

	// A compliant model response is passed through untouched.
	fc.text = "No UAVs active. Operator RW holding."
	e.RunTick(context.Background())
	assert.Equal(t, "No UAVs active. Operator RW holding.", cs.all()[1])
}

func TestTickModelError(t *testing.T) {
	fc := &fakeClient{err: errors.New("boom")}
	e, cs := newTestEngine(rtkFleet(), fc)

	require.True(t, e.RunTick(context.Background()))
	assert.Equal(t, []string{ErrorText}, cs.all())
}

func TestTickTimeoutSkips(t *testing.T) {
	fc := &fakeClient{text: "late", delay: 200 * time.Millisecond, timeout: 20 * time.Millisecond}
	e, cs := newTestEngine(rtkFleet(), fc)

	require.True(t, e.RunTick(context.Background()))
	assert.Empty(t, cs.all(), "a timed-out tick produces no output")
}

func TestSingleFlight(t *testing.T) {
	fc := &fakeClient{text: "slow report", delay: 100 * time.Millisecond}
	e, _ := newTestEngine(rtkFleet(), fc)

	done := make(chan bool, 2)
	go func() { done <- e.RunTick(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	go func() { done <- e.RunTick(context.Background()) }()

	results := []bool{<-done, <-done}
	assert.Contains(t, results, true)
	assert.Contains(t, results, false, "overlapping tick is dropped")
	assert.Equal(t, 1, fc.callCount())
}

func TestTickPassesPromptAndContext(t *testing.T) {
	fc := &fakeClient{text: "UAV-1234 nominal at 59%."}
	e, _ := newTestEngine(rtkFleet(), fc)
	require.True(t, e.RunTick(context.Background()))

	assert.Contains(t, fc.lastSys, "No UAVs active", "guardrail rides the system prompt")
	assert.True(t, strings.HasPrefix(fc.lastUsr, "DATA:\n"))
	assert.Contains(t, fc.lastUsr, "Asset: UAV-1234")
}

func ptrF(v float64) *float64 { return &v }

// fleetSnapshot keeps the context tests close to what tick sees.
func (e *Engine) fleetSnapshot() []telemetry.Asset { return e.fleet.Snapshot() }
