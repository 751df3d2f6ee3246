// pkg/telemetry/autel.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import (
	"encoding/json"
	"strings"
)

// autelModes maps the vendor flight-mode code to a readable state.
var autelModes = map[int]string{
	1:  "Manual",
	2:  "ATTI",
	3:  "GPS",
	10: "RTH",
	11: "Landing",
	12: "Mission",
	13: "Precision_Landing",
	14: "Takeoff",
	15: "Hover",
}

// autelClasses maps on-board vision detector class ids to names.
var autelClasses = map[int]string{
	3:  "Car",
	4:  "Human",
	5:  "Cyclist",
	6:  "Truck",
	30: "Human",
	34: "Drone",
	35: "Smoke",
	36: "Fire",
}

// highValueClasses is the default allowed set for visual events. The
// traffic classes (Car, Cyclist, Truck) are only admitted when the
// decoder is configured to track them.
var (
	highValueClasses = []int{4, 30, 34, 36}
	trafficClasses   = []int{3, 5, 6}
)

// AutelDecoder parses the proprietary enterprise UAV topic family:
// thing/product/<serial>/osd, .../state and .../sn.
type AutelDecoder struct {
	// Traffic admits Car/Cyclist/Truck detections into visual events.
	Traffic bool
}

type autelEnvelope struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// autelOSD covers both shapes of an OSD payload: a controller report
// carrying a drone_list plus its own position/battery, or a direct
// drone report with height/battery at top level.
type autelOSD struct {
	autelDrone
	DroneList []autelDrone `json:"drone_list"`
}

type autelDrone struct {
	SN              string              `json:"sn"`
	CapacityPercent *int                `json:"capacity_percent"`
	Latitude        *float64            `json:"latitude"`
	Longitude       *float64            `json:"longitude"`
	Height          *float64            `json:"height"`
	Battery         *autelBattery       `json:"battery"`
	PositionState   *autelPositionState `json:"position_state"`
	HorizontalSpeed *float64            `json:"horizontal_speed"`
	VerticalSpeed   *float64            `json:"vertical_speed"`
	AttitudeHead    *float64            `json:"attitude_head"`
	ModeCode        *int                `json:"mode_code"`
}

type autelBattery struct {
	CapacityPercent *int `json:"capacity_percent"`
	Voltage         int  `json:"voltage"` // total pack millivolts
}

type autelPositionState struct {
	RTKUsed   int `json:"rtk_used"`
	IsFixed   int `json:"is_fixed"`
	GPSNumber int `json:"gps_number"`
	RTKNumber int `json:"rtk_number"`
}

type autelVision struct {
	Objs []struct {
		ClsID int `json:"cls_id"`
	} `json:"objs"`
}

type autelRoster struct {
	DroneList []struct {
		DroneSN string `json:"drone_sn"`
	} `json:"drone_list"`
}

// Decode parses one enterprise UAV packet. Malformed payloads yield
// (nil, nil); the decoder never touches shared state.
func (d *AutelDecoder) Decode(topic string, payload []byte) ([]Update, *VisualEvent) {
	var env autelEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil
	}

	switch {
	case strings.HasSuffix(topic, "/osd") && len(env.Data) > 0:
		return d.decodeOSD(topic, env.Data), nil

	case strings.Contains(topic, "/state") && env.Method == "target_detect_result_report":
		return nil, d.decodeVision(env.Data)

	case strings.HasSuffix(topic, "/sn"):
		// The envelope wrapping is optional on the roster topic.
		if len(env.Data) > 0 {
			return d.decodeRoster(env.Data), nil
		}
		return d.decodeRoster(payload), nil
	}
	return nil, nil
}

func (d *AutelDecoder) decodeOSD(topic string, data json.RawMessage) []Update {
	var osd autelOSD
	if err := json.Unmarshal(data, &osd); err != nil {
		return nil
	}

	serial := topicSerial(topic)
	var updates []Update

	if len(osd.DroneList) > 0 {
		// Controller report: its own position/battery plus one or more
		// drones.
		if osd.CapacityPercent != nil && *osd.CapacityPercent > 0 {
			updates = append(updates, Update{
				TID:        "CTRL-" + lastFour(serial),
				Kind:       KindController,
				Lat:        osd.Latitude,
				Lon:        osd.Longitude,
				BatteryPct: osd.CapacityPercent,
				Mode:       "Active",
				Nav:        NavGPS,
			})
		}
		for _, drone := range osd.DroneList {
			sn := drone.SN
			if sn == "" || sn == "UNK" {
				sn = serial
			}
			if u, ok := d.normalizeUAV(drone, sn); ok {
				updates = append(updates, u)
			}
		}
		return updates
	}

	// Direct drone OSD. Controllers (serials starting with "TH") also
	// publish on this shape; their heartbeat has neither height nor
	// battery and is skipped here.
	if (osd.Height != nil || osd.Battery != nil) && !strings.HasPrefix(serial, "TH") {
		sn := osd.SN
		if sn == "" || sn == "UNK" {
			sn = serial
		}
		if u, ok := d.normalizeUAV(osd.autelDrone, sn); ok {
			updates = append(updates, u)
		}
	}
	return updates
}

// normalizeUAV converts one vendor drone blob to the standard record.
func (d *AutelDecoder) normalizeUAV(raw autelDrone, sn string) (Update, bool) {
	if sn == "" || sn == "UNK" {
		return Update{}, false
	}

	u := Update{
		TID:  "UAV-" + lastFour(sn),
		Kind: KindUAV,
		Lat:  raw.Latitude,
		Lon:  raw.Longitude,
		AltM: raw.Height,
	}

	// Battery: reported percent wins; otherwise estimate from pack
	// voltage.
	pct := 0
	if raw.Battery != nil && raw.Battery.CapacityPercent != nil {
		pct = *raw.Battery.CapacityPercent
	} else if raw.CapacityPercent != nil {
		pct = *raw.CapacityPercent
	}
	if pct == 0 && raw.Battery != nil && raw.Battery.Voltage > 0 {
		pct = estimateLiPoPercent(raw.Battery.Voltage)
	}
	u.BatteryPct = ptr(pct)

	// RTK / GPS decode.
	nav := NavGPS
	acc := 10.0
	sats := 0
	if ps := raw.PositionState; ps != nil {
		sats = ps.GPSNumber
		if ps.RTKUsed == 1 {
			sats = ps.RTKNumber
			acc = 0.1
			switch ps.IsFixed {
			case 3:
				nav = NavRTKFix
			case 2:
				nav = NavRTKFloat
			default:
				nav = NavRTK
			}
		} else if sats > 10 {
			acc = 3.0
			nav = NavGPS3D
		}
	}
	u.Nav = nav
	u.AccuracyM = ptr(acc)

	height := 0.0
	if raw.Height != nil {
		height = *raw.Height
	}
	mode := "Std"
	if raw.ModeCode != nil {
		if m, ok := autelModes[*raw.ModeCode]; ok {
			mode = m
		}
	}
	if height <= 0.1 {
		mode = "Ground_Idle"
	} else if mode == "Hover" {
		mode = "Hovering"
	}
	u.Mode = mode

	u.HSpeedMps = raw.HorizontalSpeed
	u.VSpeedMps = raw.VerticalSpeed
	u.HeadingDeg = raw.AttitudeHead
	return u, true
}

func (d *AutelDecoder) decodeVision(data json.RawMessage) *VisualEvent {
	var vision autelVision
	if err := json.Unmarshal(data, &vision); err != nil {
		return nil
	}

	allowed := make(map[int]bool, len(highValueClasses)+len(trafficClasses))
	for _, id := range highValueClasses {
		allowed[id] = true
	}
	if d.Traffic {
		for _, id := range trafficClasses {
			allowed[id] = true
		}
	}

	sightings := make(map[string]int)
	for _, obj := range vision.Objs {
		if !allowed[obj.ClsID] {
			continue
		}
		if name, ok := autelClasses[obj.ClsID]; ok {
			sightings[name]++
		}
	}
	if len(sightings) == 0 {
		return nil
	}
	return &VisualEvent{Sightings: sightings}
}

// decodeRoster registers drones announced on the /sn heartbeat so they
// appear in the table before their first OSD. No position is invented
// for them; merge rules keep any prior fix.
func (d *AutelDecoder) decodeRoster(data json.RawMessage) []Update {
	var roster autelRoster
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil
	}

	var updates []Update
	for _, entry := range roster.DroneList {
		if entry.DroneSN == "" {
			continue
		}
		updates = append(updates, Update{
			TID:  "UAV-" + lastFour(entry.DroneSN),
			Kind: KindUAV,
			Mode: "Connected",
		})
	}
	return updates
}

// estimateLiPoPercent derives charge from total pack millivolts when
// the vendor omits capacity_percent. Pack size is inferred from the
// total: at or below 14000 mV it must be 3S. Per-cell voltage is
// clamped to [3.5 V, 4.3 V] and scaled linearly to [0, 100].
func estimateLiPoPercent(mv int) int {
	if mv == 0 {
		return 0
	}
	cells := 3
	if mv > 14000 {
		cells = 4
	}
	vCell := float64(mv) / 1000 / float64(cells)
	if vCell >= 4.3 {
		return 100
	}
	if vCell <= 3.5 {
		return 0
	}
	return int((vCell - 3.5) / 0.8 * 100)
}

// topicSerial extracts the device serial from a vendor topic of the
// form thing/product/<serial>/osd.
func topicSerial(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 2 {
		return parts[2]
	}
	return "UNK"
}

func lastFour(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}
