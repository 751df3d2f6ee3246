// pkg/bridge/classify_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classifyNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestClassifyOwnTracks(t *testing.T) {
	ev, ok := Classify("owntracks/user/phone",
		[]byte(`{"_type": "location", "tid": "RW", "lat": 60.17, "lon": 24.94, "alt": 25}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, "RW", ev.TID)
	assert.Equal(t, IconMobile, ev.Icon)
	assert.Equal(t, 60.17, ev.Lat)
	assert.Equal(t, 25.0, ev.Alt)

	// Non-location OwnTracks records carry no position of interest.
	_, ok = Classify("owntracks/user/phone",
		[]byte(`{"_type": "lwt", "lat": 60.17, "lon": 24.94}`), classifyNow)
	assert.False(t, ok)
}

func TestClassifyDronetagNestedPosition(t *testing.T) {
	ev, ok := Classify("dronetag/feed",
		[]byte(`{"id": "TAG-9999", "location": {"latitude": 60.32, "longitude": 24.83},
			"altitudes": [{"type": "MSL", "value": 100}]}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, "TAG-9999", ev.TID)
	assert.Equal(t, IconPlane, ev.Icon)
	assert.Equal(t, 60.32, ev.Lat, "nested location found recursively")

	// Missing id falls back to the generic Remote-ID tag.
	ev, ok = Classify("dronetag/feed",
		[]byte(`{"location": {"latitude": 60.32, "longitude": 24.83}}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, "RID", ev.TID)
}

func TestClassifyVendorTopics(t *testing.T) {
	ev, ok := Classify("thing/product/AAAA1234/osd",
		[]byte(`{"data": {"latitude": 60.3, "longitude": 24.8, "height": 80}}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, "AAAA1234", ev.TID)
	assert.Equal(t, IconHelicopter, ev.Icon)
	assert.Equal(t, 80.0, ev.Alt)

	// Smart controllers are pinned to the ground.
	ev, ok = Classify("thing/product/TH5678/osd",
		[]byte(`{"data": {"latitude": 60.3, "longitude": 24.8, "height": 80}}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, "TH5678-RC", ev.TID)
	assert.Equal(t, IconController, ev.Icon)
	assert.Equal(t, 0.0, ev.Alt)
}

func TestClassifyRejects(t *testing.T) {
	// Sentinel-zero positions are heartbeat filler.
	_, ok := Classify("thing/product/TH5678/osd",
		[]byte(`{"data": {"latitude": 0, "longitude": 0}}`), classifyNow)
	assert.False(t, ok)

	// No position at all.
	_, ok = Classify("thing/product/AAAA1234/osd", []byte(`{"data": {"height": 10}}`), classifyNow)
	assert.False(t, ok)

	// Malformed JSON.
	_, ok = Classify("owntracks/u/p", []byte(`{`), classifyNow)
	assert.False(t, ok)
}

func TestClassifyUnknownTopic(t *testing.T) {
	ev, ok := Classify("some/sensor/node", []byte(`{"lat": 60.1, "lon": 24.9}`), classifyNow)
	require.True(t, ok)
	assert.Equal(t, IconQuestion, ev.Icon)
	assert.Equal(t, "node", ev.TID)
	assert.InDelta(t, float64(classifyNow.UnixNano())/1e9, ev.TS, 1e-6)
}
