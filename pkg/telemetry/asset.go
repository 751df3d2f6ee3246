// pkg/telemetry/asset.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package telemetry defines the normalized asset model, the per-vendor
// decoders that produce it, and the in-memory fleet table that fuses
// the decoded streams into a single tactical picture.
package telemetry

import (
	"math"
	"time"
)

// Kind classifies an asset by its role in the tactical picture.
type Kind string

const (
	KindUAV        Kind = "AIR_UAV_VENDOR_A"
	KindRemoteID   Kind = "AIR_REMOTE_ID"
	KindOperator   Kind = "GROUND_OPERATOR"
	KindController Kind = "GROUND_CONTROLLER"
)

// Airborne reports whether assets of this kind fly; visual events only
// ever attach to airborne assets.
func (k Kind) Airborne() bool {
	return k == KindUAV || k == KindRemoteID
}

// NavSource describes how an asset derives its position fix.
type NavSource string

const (
	NavGPS      NavSource = "GPS"
	NavGPS3D    NavSource = "GPS_3D"
	NavRTKFloat NavSource = "RTK_FLOAT"
	NavRTKFix   NavSource = "RTK_FIX"
	NavRTK      NavSource = "RTK"
	NavRemoteID NavSource = "REMOTE_ID"
	NavUnknown  NavSource = "UNKNOWN"
)

// RTK reports whether the fix is carrier-phase augmented. GPS quality
// grading treats any RTK solution as good regardless of the reported
// accuracy estimate.
func (n NavSource) RTK() bool {
	return n == NavRTKFix || n == NavRTKFloat || n == NavRTK
}

// BatteryUnknown is the battery_pct sentinel for sources that never
// report charge (Remote ID broadcasts).
const BatteryUnknown = -1

// Asset is the fused record for one tracked object. Lat/Lon/AltM are
// NaN until the first fix arrives.
type Asset struct {
	TID          string
	Kind         Kind
	Lat          float64
	Lon          float64
	AltM         float64
	HSpeedMps    float64
	VSpeedMps    float64
	HeadingDeg   float64
	BatteryPct   int
	Nav          NavSource
	AccuracyM    float64
	Mode         string
	AISightings  map[string]int
	LinkLatencyS float64
	FirstSeen    time.Time
	LastSeen     time.Time
}

// HasFix reports whether the asset has ever produced a usable position.
func (a *Asset) HasFix() bool {
	return !math.IsNaN(a.Lat) && !math.IsNaN(a.Lon) && math.Abs(a.Lat) >= 1
}

// Stale reports whether the asset has gone quiet for longer than
// threshold as of now.
func (a *Asset) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(a.LastSeen) > threshold
}

// Age returns how long ago the asset was last heard from.
func (a *Asset) Age(now time.Time) time.Duration {
	return now.Sub(a.LastSeen)
}

// Update is one normalized decoder output. Nil fields were absent from
// the source packet and must not disturb prior fused state.
type Update struct {
	TID          string
	Kind         Kind
	Lat          *float64
	Lon          *float64
	AltM         *float64
	HSpeedMps    *float64
	VSpeedMps    *float64
	HeadingDeg   *float64
	BatteryPct   *int
	Nav          NavSource
	AccuracyM    *float64
	Mode         string
	LinkLatencyS *float64
}

// VisualEvent is a transient computer-vision detection report. It does
// not name an asset; the dispatcher attaches it to the freshest
// airborne record.
type VisualEvent struct {
	Sightings map[string]int
}

func ptr[T any](v T) *T { return &v }
