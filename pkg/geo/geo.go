// pkg/geo/geo.go
// Copyright(c) 2026 SecuringSkies contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package geo provides great-circle distance calculations between
// tracked assets. Positions without a fix are represented as NaN
// latitude/longitude; all operations degrade to 0 rather than
// propagating errors, since distance annotations are advisory.
package geo

import "math"

// EarthRadiusM is the WGS84 mean radius.
const EarthRadiusM = 6371000

// Distance2D returns the haversine surface distance in meters between
// two WGS84 positions. Returns 0 if either latitude is not a finite
// number.
func Distance2D(lat1, lon1, lat2, lon2 float64) float64 {
	if !valid(lat1) || !valid(lon1) || !valid(lat2) || !valid(lon2) {
		return 0
	}

	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dphi := radians(lat2 - lat1)
	dlambda := radians(lon2 - lon1)

	a := sqr(math.Sin(dphi/2)) + math.Cos(phi1)*math.Cos(phi2)*sqr(math.Sin(dlambda/2))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Distance3D returns the slant distance in meters: surface distance
// combined with the altitude difference. Altitudes that are not finite
// are treated as equal.
func Distance3D(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64 {
	surface := Distance2D(lat1, lon1, lat2, lon2)
	if surface == 0 && (!valid(lat1) || !valid(lat2)) {
		return 0
	}
	if !valid(alt1) || !valid(alt2) {
		return surface
	}
	dalt := alt2 - alt1
	return math.Sqrt(surface*surface + dalt*dalt)
}

func valid(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func sqr(x float64) float64 { return x * x }
