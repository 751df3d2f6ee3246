// pkg/telemetry/fleet.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/brunoga/deep"
)

// historyDepth bounds the per-asset update ring kept for back-fill
// rules. Not part of the external contract.
const historyDepth = 10

// Fleet is the keyed in-memory table of latest asset records. All
// mutation goes through ApplyUpdate/AttachVisual on the dispatcher
// task; every other component works from Snapshot copies.
type Fleet struct {
	mu      sync.RWMutex
	assets  map[string]*Asset
	history map[string][]Update
	now     func() time.Time
}

func NewFleet() *Fleet {
	return &Fleet{
		assets:  make(map[string]*Asset),
		history: make(map[string][]Update),
		now:     time.Now,
	}
}

// SetClock replaces the fleet's time source; tests use this to advance
// time deterministically.
func (f *Fleet) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// ApplyUpdate merges one normalized decoder output into the table.
// Fields carried by the update overwrite; absent fields preserve prior
// values. A near-zero position (|lat| < 1 degree) never replaces a
// valid prior fix: controller heartbeats report 0/0 before their GPS
// warms up and must not stomp a drone's true position.
func (f *Fleet) ApplyUpdate(u Update) {
	if u.TID == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	a, ok := f.assets[u.TID]
	if !ok {
		a = &Asset{
			TID:        u.TID,
			Lat:        math.NaN(),
			Lon:        math.NaN(),
			AltM:       math.NaN(),
			BatteryPct: BatteryUnknown,
			Nav:        NavUnknown,
			FirstSeen:  now,
		}
		f.assets[u.TID] = a
	}

	if u.Kind != "" {
		a.Kind = u.Kind
	}
	if u.Lat != nil && u.Lon != nil {
		sentinel := math.Abs(*u.Lat) < 1
		if !sentinel || !a.HasFix() {
			a.Lat = *u.Lat
			a.Lon = *u.Lon
		}
	}
	if u.AltM != nil {
		a.AltM = *u.AltM
	}
	if u.HSpeedMps != nil {
		a.HSpeedMps = *u.HSpeedMps
	}
	if u.VSpeedMps != nil {
		a.VSpeedMps = *u.VSpeedMps
	}
	if u.HeadingDeg != nil {
		a.HeadingDeg = *u.HeadingDeg
	}
	if u.BatteryPct != nil {
		a.BatteryPct = *u.BatteryPct
	}
	if u.Nav != "" {
		a.Nav = u.Nav
	}
	if u.AccuracyM != nil {
		a.AccuracyM = *u.AccuracyM
	}
	if u.Mode != "" {
		a.Mode = u.Mode
	}
	if u.LinkLatencyS != nil {
		a.LinkLatencyS = *u.LinkLatencyS
	}

	// last_seen is monotonically non-decreasing even if the clock steps
	// backwards underneath us.
	if now.After(a.LastSeen) {
		a.LastSeen = now
	}

	h := append(f.history[u.TID], u)
	if len(h) > historyDepth {
		h = h[len(h)-historyDepth:]
	}
	f.history[u.TID] = h
}

// AttachVisual overwrites the sightings of the most recently updated
// airborne asset. Returns false when no airborne asset exists and the
// event is dropped.
func (f *Fleet) AttachVisual(v VisualEvent) bool {
	if len(v.Sightings) == 0 {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var freshest *Asset
	for _, a := range f.assets {
		if !a.Kind.Airborne() {
			continue
		}
		if freshest == nil || a.LastSeen.After(freshest.LastSeen) {
			freshest = a
		}
	}
	if freshest == nil {
		return false
	}

	freshest.AISightings = make(map[string]int, len(v.Sightings))
	for class, n := range v.Sightings {
		freshest.AISightings[class] = n
	}
	return true
}

// Get returns a copy of one asset record.
func (f *Fleet) Get(tid string) (Asset, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	a, ok := f.assets[tid]
	if !ok {
		return Asset{}, false
	}
	cp, err := deep.Copy(*a)
	if err != nil {
		return *a, true
	}
	return cp, true
}

// Snapshot returns a deep copy of the table sorted by TID. The battery
// back-fill rule is applied here: an explicit zero reading is revived
// from the most recent positive value in the asset's history, since
// some vendor heartbeats report 0% while the pack is merely unsampled.
func (f *Fleet) Snapshot() []Asset {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Asset, 0, len(f.assets))
	for tid, a := range f.assets {
		cp, err := deep.Copy(*a)
		if err != nil {
			cp = *a
		}
		if cp.BatteryPct == 0 {
			hist := f.history[tid]
			for i := len(hist) - 1; i >= 0; i-- {
				u := hist[i]
				if u.BatteryPct != nil && *u.BatteryPct > 0 {
					cp.BatteryPct = *u.BatteryPct
					break
				}
			}
		}
		out = append(out, cp)
	}

	slices.SortFunc(out, func(a, b Asset) int { return strings.Compare(a.TID, b.TID) })
	return out
}

// Len returns the number of tracked assets.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.assets)
}
