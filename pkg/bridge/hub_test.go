// pkg/bridge/hub_test.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package bridge

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securingskies/agcs/pkg/log"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubStreamsEvents(t *testing.T) {
	h := NewHub(log.NewDiscard())
	conn := dialHub(t, h)

	// Wait until the session is registered before publishing.
	require.Eventually(t, func() bool { return h.Sessions() == 1 },
		time.Second, 10*time.Millisecond)

	h.HandleMessage("owntracks/user/phone",
		[]byte(`{"_type": "location", "tid": "RW", "lat": 60.17, "lon": 24.94}`))

	ev := readEvent(t, conn)
	assert.Equal(t, "RW", ev.TID)
	assert.Equal(t, IconMobile, ev.Icon)
}

func TestHubReplaysLatestToNewViewers(t *testing.T) {
	h := NewHub(log.NewDiscard())

	// Two positions for the same asset before any viewer connects:
	// only the newest should reach a late joiner.
	h.HandleMessage("thing/product/AAAA1234/osd",
		[]byte(`{"data": {"latitude": 60.30, "longitude": 24.80, "height": 50}}`))
	h.HandleMessage("thing/product/AAAA1234/osd",
		[]byte(`{"data": {"latitude": 60.31, "longitude": 24.81, "height": 60}}`))

	conn := dialHub(t, h)
	ev := readEvent(t, conn)
	assert.Equal(t, "AAAA1234", ev.TID)
	assert.Equal(t, 60.31, ev.Lat, "latest wins per tid")
}

func TestHubDropsDisconnectedViewers(t *testing.T) {
	h := NewHub(log.NewDiscard())
	conn := dialHub(t, h)

	require.Eventually(t, func() bool { return h.Sessions() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Sessions() == 0 },
		time.Second, 10*time.Millisecond)

	// Publishing with no viewers is a no-op, not a crash.
	h.HandleMessage("owntracks/u/p", []byte(`{"_type": "location", "lat": 60.1, "lon": 24.9}`))
}

func TestHubIgnoresUnusableTraffic(t *testing.T) {
	h := NewHub(log.NewDiscard())
	conn := dialHub(t, h)

	require.Eventually(t, func() bool { return h.Sessions() == 1 },
		time.Second, 10*time.Millisecond)

	h.HandleMessage("thing/product/TH5678/osd", []byte(`{"data": {"latitude": 0, "longitude": 0}}`))
	h.HandleMessage("dronetag/feed", []byte(`not json`))
	h.HandleMessage("owntracks/u/p",
		[]byte(`{"_type": "location", "tid": "RW", "lat": 60.17, "lon": 24.94}`))

	// Only the valid packet arrives.
	ev := readEvent(t, conn)
	assert.Equal(t, "RW", ev.TID)
}

func TestHubCloseIsIdempotent(t *testing.T) {
	h := NewHub(log.NewDiscard())
	dialHub(t, h)

	require.Eventually(t, func() bool { return h.Sessions() == 1 },
		time.Second, 10*time.Millisecond)

	h.Close()
	h.Close()
	assert.Equal(t, 0, h.Sessions())
}
