// Package geo holds the spherical geometry used by the geofence engine.
package geo

import (
	"math"
	"time"
)

// EarthRadiusM is the mean Earth radius used by Distance.
const EarthRadiusM = 6371000.0

// Distance returns the great-circle distance in metres between two
// coordinates given in decimal degrees (Haversine).
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := toRad(lat1)
	φ2 := toRad(lat2)
	Δφ := toRad(lat2 - lat1)
	Δλ := toRad(lng2 - lng1)

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ValidCoordinate reports whether lat/lng are finite and inside the WGS84 range.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Speed infers the speed in m/s between two fixes. ok is false when the
// elapsed time is not positive, in which case no speed can be inferred.
func Speed(lat0, lng0 float64, t0 time.Time, lat1, lng1 float64, t1 time.Time) (mps float64, ok bool) {
	dt := t1.Sub(t0).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return Distance(lat0, lng0, lat1, lng1) / dt, true
}

// Offset moves a coordinate by northM metres north and eastM metres east
// using a local flat-earth approximation. Good enough for the few hundred
// metres scenarios and simulations work with.
func Offset(lat, lng, northM, eastM float64) (float64, float64) {
	dLat := northM / EarthRadiusM
	dLng := eastM / (EarthRadiusM * math.Cos(toRad(lat)))
	return lat + toDeg(dLat), lng + toDeg(dLng)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
