// pkg/telemetry/dronetag.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// DronetagDecoder parses ASTM F3411-style Remote ID broadcasts relayed
// over the dronetag/# topic family.
type DronetagDecoder struct {
	// Now is the server clock used for link latency; defaults to
	// time.Now.
	Now func() time.Time
}

type dronetagMsg struct {
	SensorID string `json:"sensor_id"`
	UASID    string `json:"uas_id"`
	Location *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
	} `json:"location"`
	HorizontalAccuracy float64 `json:"horizontal_accuracy"`
	Altitudes          []struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	} `json:"altitudes"`
	Altitude *float64 `json:"altitude"`
	Velocity *struct {
		HorizontalSpeed *float64 `json:"horizontal_speed"`
		X               float64  `json:"x"`
		Y               float64  `json:"y"`
	} `json:"velocity"`
	OperationalState string `json:"operational_state"`
	Timestamp        string `json:"timestamp"`
}

// Decode parses one Remote ID message. Remote ID never carries battery
// state, so battery_pct is the unknown sentinel.
func (d *DronetagDecoder) Decode(topic string, payload []byte) ([]Update, *VisualEvent) {
	var msg dronetagMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, nil
	}

	id := msg.SensorID
	if id == "" {
		id = msg.UASID
	}
	if id == "" {
		return nil, nil
	}

	u := Update{
		TID:        "TAG-" + lastFour(id),
		Kind:       KindRemoteID,
		Nav:        NavRemoteID,
		BatteryPct: ptr(BatteryUnknown),
	}

	acc := msg.HorizontalAccuracy
	if msg.Location != nil {
		u.Lat = msg.Location.Latitude
		u.Lon = msg.Location.Longitude
		if msg.Location.Accuracy > 0 {
			acc = msg.Location.Accuracy
		}
	}
	u.AccuracyM = ptr(acc)

	// Altitude preference: MSL entry first, then whatever leads the
	// list, then the scalar field.
	alt := 0.0
	if len(msg.Altitudes) > 0 {
		alt = msg.Altitudes[0].Value
		for _, a := range msg.Altitudes {
			if a.Type == "MSL" {
				alt = a.Value
				break
			}
		}
	} else if msg.Altitude != nil {
		alt = *msg.Altitude
	}
	u.AltM = ptr(alt)

	speed := 0.0
	if vel := msg.Velocity; vel != nil {
		if vel.HorizontalSpeed != nil {
			speed = *vel.HorizontalSpeed
		} else {
			speed = math.Sqrt(vel.X*vel.X + vel.Y*vel.Y)
		}
	}
	u.HSpeedMps = ptr(speed)

	state := strings.ToUpper(msg.OperationalState)
	if state == "" {
		state = "UNKNOWN"
	}
	// Broadcasts frequently leave the state unset after takeoff; treat
	// anything clearly off the ground as airborne.
	if state == "UNKNOWN" && alt > 5 {
		state = "AIRBORNE"
	}
	u.Mode = state

	if msg.Timestamp != "" {
		if deviceTS, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			now := time.Now
			if d.Now != nil {
				now = d.Now
			}
			u.LinkLatencyS = ptr(now().Sub(deviceTS).Seconds())
		}
	}

	return []Update{u}, nil
}
