// pkg/bridge/classify.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package bridge pushes live position snapshots to browser map viewers
// over websockets. It keeps its own lightweight view of the traffic:
// no fusion, no history, latest position wins per asset.
package bridge

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is the viewer-facing snapshot of one asset.
type Event struct {
	TID  string  `json:"tid"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  float64 `json:"alt"`
	Icon string  `json:"icon"`
	TS   float64 `json:"ts"`
}

// Map icons, chosen by topic family.
const (
	IconMobile     = "mobile"
	IconPlane      = "plane"
	IconHelicopter = "helicopter"
	IconController = "controller"
	IconQuestion   = "question"
)

var (
	latKeys = []string{"lat", "latitude", "gps_lat"}
	lonKeys = []string{"lon", "longitude", "gps_lon"}
	altKeys = []string{"height", "alt", "altitude", "rel_alt"}
)

// Classify extracts a viewer event from a raw broker message. Vendor
// payloads nest position at varying depths, so the search is
// recursive and key-based rather than schema-based. Returns false for
// messages without a plausible position; near-zero latitudes are
// heartbeat filler, not fixes.
func Classify(topic string, payload []byte, now time.Time) (Event, bool) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return Event{}, false
	}

	lat, latOK := findNumber(data, latKeys)
	lon, lonOK := findNumber(data, lonKeys)
	if !latOK || !lonOK || (lat > -1 && lat < 1) {
		return Event{}, false
	}
	alt, _ := findNumber(data, altKeys)

	parts := strings.Split(topic, "/")
	tid := parts[len(parts)-1]
	icon := IconQuestion

	switch {
	case strings.HasPrefix(topic, "owntracks"):
		obj, _ := data.(map[string]any)
		if t, _ := obj["_type"].(string); t != "location" {
			return Event{}, false
		}
		if v, ok := obj["tid"].(string); ok {
			tid = v
		}
		icon = IconMobile
	case strings.HasPrefix(topic, "dronetag"):
		tid = "RID"
		if obj, ok := data.(map[string]any); ok {
			if v, ok := obj["id"].(string); ok {
				tid = v
			}
		}
		icon = IconPlane
	case strings.Contains(topic, "product"):
		if len(parts) >= 3 {
			tid = parts[2]
		}
		if strings.HasPrefix(tid, "TH") {
			// Smart controllers sit on the ground with the pilot.
			icon = IconController
			tid += "-RC"
			alt = 0
		} else {
			icon = IconHelicopter
		}
	}

	return Event{
		TID:  tid,
		Lat:  lat,
		Lon:  lon,
		Alt:  alt,
		Icon: icon,
		TS:   float64(now.UnixNano()) / 1e9,
	}, true
}

// findNumber walks nested objects and arrays for the first value under
// any of the candidate keys, case-insensitively.
func findNumber(data any, keys []string) (float64, bool) {
	switch v := data.(type) {
	case map[string]any:
		for k, val := range v {
			lk := strings.ToLower(k)
			for _, want := range keys {
				if lk == want {
					if n, ok := val.(float64); ok {
						return n, true
					}
				}
			}
		}
		for _, val := range v {
			switch val.(type) {
			case map[string]any, []any:
				if n, ok := findNumber(val, keys); ok {
					return n, true
				}
			}
		}
	case []any:
		for _, item := range v {
			if n, ok := findNumber(item, keys); ok {
				return n, true
			}
		}
	}
	return 0, false
}
