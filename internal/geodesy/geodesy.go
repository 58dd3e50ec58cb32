// Package geodesy converts between Earth-centered Cartesian (ECEF)
// coordinates, WGS84 geodetic coordinates, and the local East-North-Up
// tangent frame. All functions are pure; batch variants exist so callers
// holding whole trajectories do not loop by hand.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/argos-data/trackrecon/internal/geom"
)

// WGS84 ellipsoid parameters.
const (
	SemiMajorAxis     = 6378137.0
	InverseFlattening = 298.257223563

	flattening     = 1 / InverseFlattening
	semiMinorAxis  = SemiMajorAxis * (1 - flattening)
	eccentricitySq = flattening * (2 - flattening)
)

// maxENULatitude bounds the latitude accepted by ECEFToENURotation. Closer
// to the poles the east/north axes are numerically ill-conditioned, so the
// construction refuses rather than returning a silently degenerate frame.
const maxENULatitude = 89.9 * math.Pi / 180

// ErrDegenerateLatitude reports a latitude too close to a pole for a stable
// ENU frame.
var ErrDegenerateLatitude = errors.New("geodesy: latitude too close to pole for ENU frame")

// Geodetic is a position on the WGS84 ellipsoid: longitude and latitude in
// degrees, altitude in metres above the ellipsoid.
type Geodetic struct {
	Longitude float64
	Latitude  float64
	Altitude  float64
}

// GeodeticToECEF converts one geodetic position to ECEF metres.
func GeodeticToECEF(g Geodetic) r3.Vector {
	lat := g.Latitude * math.Pi / 180
	lon := g.Longitude * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Prime vertical radius of curvature.
	n := SemiMajorAxis / math.Sqrt(1-eccentricitySq*sinLat*sinLat)
	return r3.Vector{
		X: (n + g.Altitude) * cosLat * cosLon,
		Y: (n + g.Altitude) * cosLat * sinLon,
		Z: (n*(1-eccentricitySq) + g.Altitude) * sinLat,
	}
}

// ECEFToGeodetic converts one ECEF position to geodetic coordinates. Uses
// the standard fixed-point iteration on geodetic latitude, which converges
// to well below ellipsoid-model precision in a handful of steps for any
// altitude a vehicle can occupy.
func ECEFToGeodetic(p r3.Vector) Geodetic {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	if rho < 1e-9 {
		// On the polar axis the longitude is arbitrary and the latitude
		// exact.
		lat := math.Pi / 2
		if p.Z < 0 {
			lat = -lat
		}
		return Geodetic{
			Longitude: lon * 180 / math.Pi,
			Latitude:  lat * 180 / math.Pi,
			Altitude:  math.Abs(p.Z) - semiMinorAxis,
		}
	}

	lat := math.Atan2(p.Z, rho*(1-eccentricitySq))
	var alt float64
	for i := 0; i < 8; i++ {
		sinLat := math.Sin(lat)
		n := SemiMajorAxis / math.Sqrt(1-eccentricitySq*sinLat*sinLat)
		alt = rho/math.Cos(lat) - n
		next := math.Atan2(p.Z, rho*(1-eccentricitySq*n/(n+alt)))
		if math.Abs(next-lat) < 1e-13 {
			lat = next
			break
		}
		lat = next
	}
	return Geodetic{
		Longitude: lon * 180 / math.Pi,
		Latitude:  lat * 180 / math.Pi,
		Altitude:  alt,
	}
}

// ECEFToGeodeticAll converts a batch of ECEF positions.
func ECEFToGeodeticAll(ps []r3.Vector) []Geodetic {
	out := make([]Geodetic, len(ps))
	for i, p := range ps {
		out[i] = ECEFToGeodetic(p)
	}
	return out
}

// GeodeticToECEFAll converts a batch of geodetic positions.
func GeodeticToECEFAll(gs []Geodetic) []r3.Vector {
	out := make([]r3.Vector, len(gs))
	for i, g := range gs {
		out[i] = GeodeticToECEF(g)
	}
	return out
}

// ECEFToGeodeticSlices converts raw N×3 rows (as read from a log) into
// geodetic coordinates, rejecting malformed rows rather than truncating or
// padding them.
func ECEFToGeodeticSlices(rows [][]float64) ([]Geodetic, error) {
	ps, err := geom.VectorsFromSlices(rows)
	if err != nil {
		return nil, fmt.Errorf("geodesy: %w", err)
	}
	return ECEFToGeodeticAll(ps), nil
}

// ECEFToENURotation returns the rotation taking ECEF vectors into the local
// East-North-Up frame centred at the given geodetic point (radians).
//
// The construction mirrors the classical north-pole-referenced derivation
// and its order is load-bearing: rotate about the polar axis by the
// longitude, rotate about the resulting east axis by 90° minus the
// colatitude, reflect the north-pole axes into the desired handedness, then
// permute the intermediate frame into east-north-up. The returned rotation
// is the inverse (transpose) of the composed chain. Validated against the
// local-up reference vector rather than re-derived; see the package tests.
func ECEFToENURotation(latRad, lonRad float64) (geom.Rotation, error) {
	if math.Abs(latRad) >= maxENULatitude {
		return geom.Rotation{}, fmt.Errorf("%w: lat=%.6f rad", ErrDegenerateLatitude, latRad)
	}

	northPole := mat.NewDense(3, 3, []float64{
		-1, 0, 0,
		0, -1, 0,
		0, 0, 1,
	})

	sinColat, cosColat := math.Sincos(math.Pi/2 - latRad)
	byLat := mat.NewDense(3, 3, []float64{
		cosColat, 0, sinColat,
		0, 1, 0,
		-sinColat, 0, cosColat,
	})

	sinLon, cosLon := math.Sincos(lonRad)
	byLon := mat.NewDense(3, 3, []float64{
		cosLon, -sinLon, 0,
		sinLon, cosLon, 0,
		0, 0, 1,
	})

	nedToEnu := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})

	var tilt, chain mat.Dense
	tilt.Mul(byLat, northPole)
	chain.Mul(byLon, &tilt)

	var enu mat.Dense
	enu.Mul(nedToEnu, chain.T())

	r, err := geom.NewRotationFromMatrix(&enu)
	if err != nil {
		return geom.Rotation{}, fmt.Errorf("geodesy: ENU rotation: %w", err)
	}
	return r, nil
}

// LocalUp returns the ECEF unit vector pointing away from the ellipsoid
// surface at the given geodetic point (radians). Reference vector for
// validating the ENU construction.
func LocalUp(latRad, lonRad float64) r3.Vector {
	sinLat, cosLat := math.Sincos(latRad)
	sinLon, cosLon := math.Sincos(lonRad)
	return r3.Vector{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
}
