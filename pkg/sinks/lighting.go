// pkg/sinks/lighting.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sinks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/securingskies/agcs/pkg/log"
	"github.com/securingskies/agcs/pkg/telemetry"
)

// MoodState is the ambient room color summarizing fleet status.
type MoodState string

const (
	MoodNormal   MoodState = "NORMAL"   // warm white
	MoodWarning  MoodState = "WARNING"  // orange, battery low
	MoodContact  MoodState = "CONTACT"  // blue, vision sighting
	MoodLost     MoodState = "LOST"     // purple, signal loss
	MoodCritical MoodState = "CRITICAL" // red, battery critical
)

// hueSetting is one Philips-bridge light state.
type hueSetting struct {
	On  bool `json:"on"`
	Hue int  `json:"hue"`
	Sat int  `json:"sat"`
	Bri int  `json:"bri"`
}

var moodSettings = map[MoodState]hueSetting{
	MoodCritical: {On: true, Hue: 0, Sat: 254, Bri: 254},
	MoodWarning:  {On: true, Hue: 12750, Sat: 254, Bri: 200},
	MoodContact:  {On: true, Hue: 45000, Sat: 254, Bri: 254},
	MoodLost:     {On: true, Hue: 40000, Sat: 254, Bri: 100},
	MoodNormal:   {On: true, Hue: 25500, Sat: 254, Bri: 150},
}

// MoodFor derives the room state from a fleet snapshot. The most
// urgent condition wins: critical battery, then lost signal, then a
// vision contact, then a battery warning.
func MoodFor(snap []telemetry.Asset, now time.Time, stale time.Duration, criticalPct, warningPct int) MoodState {
	mood := MoodNormal
	for i := range snap {
		a := &snap[i]
		batt := a.BatteryPct

		switch {
		case batt != telemetry.BatteryUnknown && batt <= criticalPct:
			return MoodCritical
		case a.Kind.Airborne() && a.Stale(now, stale):
			mood = MoodLost
		case len(a.AISightings) > 0 && mood != MoodLost:
			mood = MoodContact
		case batt != telemetry.BatteryUnknown && batt <= warningPct &&
			mood != MoodLost && mood != MoodContact:
			mood = MoodWarning
		}
	}
	return mood
}

// Lighting drives Philips Hue lamps over the bridge's REST interface.
type Lighting struct {
	BridgeURL string   // http://<bridge-ip>/api/<username>
	Lights    []string // light ids on the bridge

	breaker *Breaker
	http    *http.Client
	lg      *log.Logger
	last    MoodState
}

func NewLighting(bridgeURL string, lights []string, lg *log.Logger) *Lighting {
	return &Lighting{
		BridgeURL: bridgeURL,
		Lights:    lights,
		breaker:   NewBreaker(BreakerCooldown),
		http:      &http.Client{Timeout: 2 * time.Second},
		lg:        lg,
	}
}

// Apply pushes a mood to every configured lamp. Repeated identical
// moods are skipped; failures trip the breaker.
func (l *Lighting) Apply(mood MoodState) {
	if mood == l.last || !l.breaker.Allow() {
		return
	}

	setting, ok := moodSettings[mood]
	if !ok {
		return
	}
	body, _ := json.Marshal(setting)

	for _, id := range l.Lights {
		url := fmt.Sprintf("%s/lights/%s/state", l.BridgeURL, id)
		req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			continue
		}
		resp, err := l.http.Do(req)
		if err != nil {
			l.lg.Warnf("lighting bridge unreachable: %v", err)
			l.breaker.Fail()
			return
		}
		resp.Body.Close()
	}
	l.last = mood
}
