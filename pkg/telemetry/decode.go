// pkg/telemetry/decode.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package telemetry

import "strings"

// Decoders routes raw packets to the per-vendor decoder selected by
// topic prefix. Decoders are total: malformed input yields (nil, nil)
// and nothing else happens.
type Decoders struct {
	Autel     AutelDecoder
	Dronetag  DronetagDecoder
	OwnTracks OwnTracksDecoder
}

// Decode normalizes one raw packet into asset updates and/or a visual
// event. Topics outside the subscribed families are ignored.
func (d *Decoders) Decode(topic string, payload []byte) ([]Update, *VisualEvent) {
	switch {
	case strings.HasPrefix(topic, "owntracks/"):
		return d.OwnTracks.Decode(topic, payload)
	case strings.HasPrefix(topic, "dronetag/"):
		return d.Dronetag.Decode(topic, payload)
	case strings.HasPrefix(topic, "thing/product"):
		return d.Autel.Decode(topic, payload)
	}
	return nil, nil
}
