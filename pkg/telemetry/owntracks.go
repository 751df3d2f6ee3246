// pkg/telemetry/owntracks.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"encoding/json"
	"time"
)

// OwnTracksDecoder parses operator location reports from the
// owntracks/# topic family. Only records with _type == "location" are
// accepted.
type OwnTracksDecoder struct {
	Now func() time.Time
}

type owntracksMsg struct {
	Type string   `json:"_type"`
	TID  string   `json:"tid"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
	Alt  *float64 `json:"alt"`
	Batt *int     `json:"batt"`
	Acc  *float64 `json:"acc"`
	Vel  *float64 `json:"vel"` // ground speed, km/h on the wire
	Cog  *float64 `json:"cog"`
	Tst  int64    `json:"tst"` // device timestamp, epoch seconds
}

func (d *OwnTracksDecoder) Decode(topic string, payload []byte) ([]Update, *VisualEvent) {
	var msg owntracksMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, nil
	}
	if msg.Type != "location" {
		return nil, nil
	}

	tid := msg.TID
	if tid == "" {
		tid = "PHONE"
	}

	u := Update{
		TID:        tid,
		Kind:       KindOperator,
		Lat:        msg.Lat,
		Lon:        msg.Lon,
		AltM:       msg.Alt,
		BatteryPct: msg.Batt,
		AccuracyM:  msg.Acc,
		HeadingDeg: msg.Cog,
		Nav:        NavGPS,
		Mode:       "Active",
	}

	if msg.Vel != nil {
		u.HSpeedMps = ptr(*msg.Vel / 3.6)
	}

	if msg.Tst > 0 {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		u.LinkLatencyS = ptr(now().Sub(time.Unix(msg.Tst, 0)).Seconds())
	}

	return []Update{u}, nil
}
