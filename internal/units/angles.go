// Package units holds small scalar conversions shared across the pipeline:
// degree/radian conversion and phase unwrapping for angle time series.
package units

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// WrapToPi wraps an angle in radians into (-π, π].
func WrapToPi(a float64) float64 {
	w := math.Mod(a+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

// UnwrapAngles removes 2π discontinuities from an angle sequence so that
// consecutive samples never jump by more than π. Yaw series cross the ±π
// boundary on every full turn; plotted raw they show sawtooth artifacts.
func UnwrapAngles(a []float64) []float64 {
	if len(a) == 0 {
		return nil
	}
	out := make([]float64, len(a))
	out[0] = a[0]
	offset := 0.0
	for i := 1; i < len(a); i++ {
		d := a[i] - a[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi
		} else if d < -math.Pi {
			offset += 2 * math.Pi
		}
		out[i] = a[i] + offset
	}
	return out
}
