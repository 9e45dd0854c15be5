// Package geo provides the bounding-box prefilter and great-circle distance
// math used to match discounts to a user's location.
package geo

import "math"

const (
	// degreeKm is the approximate length of one degree of latitude.
	degreeKm = 111.0

	// poleCutoffDeg is the latitude beyond which the longitude delta is
	// clamped to a full hemisphere, since 1/cos(lat) blows up at the poles.
	poleCutoffDeg = 89.0

	lngMaxDeg = 180.0

	// earthRadiusKm is the IUGG mean Earth radius.
	earthRadiusKm = 6371.0088
)

// BoundingBox is an axis-aligned latitude/longitude window. It is a cheap
// prefilter evaluated by the backing store, not the final truth: callers must
// still apply the exact distance check to everything inside it.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Bounds returns the bounding box of radiusKm around the origin point.
func Bounds(lat, lng, radiusKm float64) BoundingBox {
	latDelta := radiusKm / degreeKm

	var lngDelta float64
	if math.Abs(lat) >= poleCutoffDeg {
		lngDelta = lngMaxDeg
	} else {
		lngDelta = math.Abs(radiusKm / (degreeKm * math.Cos(lat*math.Pi/180)))
	}

	return BoundingBox{
		MinLat: lat - latDelta,
		MaxLat: lat + latDelta,
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// DistanceKm returns the great-circle (haversine) distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180

	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lng2 - lng1) * rad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// ValidPoint reports whether lat/lng form a valid coordinate pair.
func ValidPoint(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
