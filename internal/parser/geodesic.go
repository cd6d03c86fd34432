package parser

import (
	"math"

	"github.com/jftuga/geodist"
)

// Fix is a single GPS position. Elevation is nil when the device did not record one.
type Fix struct {
	Lat       float64
	Lon       float64
	Elevation *float64
}

// Valid reports whether the coordinates can take part in distance math.
func (f Fix) Valid() bool {
	return !math.IsNaN(f.Lat) && !math.IsNaN(f.Lon) && !math.IsInf(f.Lat, 0) && !math.IsInf(f.Lon, 0)
}

const (
	earthRadiusKm = 6371.0
	// geodist computes haversine on a fixed 6378.1 km radius.
	geodistRadiusKm = 6378.1
)

// Haversine returns the great-circle distance between two fixes in kilometers
// on a sphere of radius 6371 km.
func Haversine(a, b Fix) float64 {
	_, km := geodist.HaversineDistance(
		geodist.Coord{Lat: a.Lat, Lon: a.Lon},
		geodist.Coord{Lat: b.Lat, Lon: b.Lon},
	)
	return km * earthRadiusKm / geodistRadiusKm
}

// ElevationGain returns the climb from a to b in meters, 0 for descents or
// when either elevation is unknown.
func ElevationGain(a, b Fix) float64 {
	if a.Elevation == nil || b.Elevation == nil {
		return 0
	}
	delta := *b.Elevation - *a.Elevation
	if delta > 0 {
		return delta
	}
	return 0
}

// trackAccumulator sums distance and climb over consecutive fixes. Invalid
// fixes are skipped so one bad point never poisons the running total.
type trackAccumulator struct {
	distanceKm float64
	gainM      float64
	last       *Fix
}

func (acc *trackAccumulator) add(f Fix) {
	if !f.Valid() {
		return
	}
	if acc.last != nil {
		acc.distanceKm += Haversine(*acc.last, f)
		acc.gainM += ElevationGain(*acc.last, f)
	}
	acc.last = &f
}
