// Command gen-synthetic writes a synthetic sensor log for exercising the
// reconstruction pipeline without real radar data: a vehicle driving a
// circle near a configurable geodetic origin, with exact frame-to-frame
// transforms, optionally perturbed to mimic aligner noise, plus fused
// estimator snapshots and a groundtruth track.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/argos-data/trackrecon/internal/geodesy"
	"github.com/argos-data/trackrecon/internal/geom"
	"github.com/argos-data/trackrecon/internal/recorder"
	"github.com/argos-data/trackrecon/internal/sensorlog"
	"github.com/argos-data/trackrecon/internal/units"
)

var (
	outPath  = flag.String("out", "synthetic.db", "Output sqlite log path")
	steps    = flag.Int("steps", 200, "Number of frames")
	dt       = flag.Float64("dt", 0.25, "Seconds between frames")
	speed    = flag.Float64("speed", 8.0, "Vehicle speed (m/s)")
	radius   = flag.Float64("radius", 120.0, "Circle radius (m)")
	lat      = flag.Float64("lat", 48.2, "Origin latitude (deg)")
	lon      = flag.Float64("lon", 11.6, "Origin longitude (deg)")
	noise    = flag.Float64("noise", 0.02, "Std dev of aligner translation noise (m)")
	seedFlag = flag.Int64("seed", 1, "RNG seed")
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seedFlag))

	enuRot, err := geodesy.ECEFToENURotation(units.Radians(*lat), units.Radians(*lon))
	if err != nil {
		log.Fatalf("ENU frame: %v", err)
	}
	origin := geodesy.GeodeticToECEF(geodesy.Geodetic{Longitude: *lon, Latitude: *lat, Altitude: 520})

	// True poses on the circle. The attitude maps ECEF into the body
	// frame: ENU first, then yaw about up.
	truePos := make([]r3.Vector, *steps)
	trueAtt := make([]geom.Rotation, *steps)
	omega := *speed / *radius
	for i := 0; i < *steps; i++ {
		theta := omega * float64(i) * *dt
		enu := r3.Vector{
			X: *radius * math.Sin(theta),
			Y: *radius * (1 - math.Cos(theta)),
		}
		truePos[i] = origin.Add(enuRot.ApplyInverse(enu))
		trueAtt[i] = geom.RotationAboutZ(theta).Compose(enuRot)
	}

	boresight := r3.Vector{X: 0.8, Y: -0.3, Z: 1.1}
	entries := make([]sensorlog.Entry, *steps)
	snaps := make([]sensorlog.TimedSnapshot, *steps)
	for i := 0; i < *steps; i++ {
		ts := float64(i) * *dt
		entries[i] = sensorlog.Entry{Time: ts, Position: truePos[i], Attitude: trueAtt[i]}
		if i > 0 {
			// Exact relative transform between consecutive poses,
			// perturbed by aligner noise.
			rot := trueAtt[i-1].Invert().Compose(trueAtt[i])
			trans := trueAtt[i-1].Apply(truePos[i].Sub(truePos[i-1]))
			trans = trans.Add(r3.Vector{
				X: rng.NormFloat64() * *noise,
				Y: rng.NormFloat64() * *noise,
				Z: rng.NormFloat64() * *noise,
			})
			entries[i].Delta = geom.RigidTransform{Translation: trans, Rotation: rot}
		}

		// Fused snapshots hug the true track with a small residual.
		innov := []float64{
			rng.NormFloat64() * *noise,
			rng.NormFloat64() * *noise,
			rng.NormFloat64() * *noise,
		}
		cov := mat.NewSymDense(3, nil)
		for k := 0; k < 3; k++ {
			cov.SetSym(k, k, (*noise)*(*noise))
		}
		snaps[i] = sensorlog.TimedSnapshot{Time: ts, State: recorder.Snapshot{
			Position:      truePos[i],
			Attitude:      trueAtt[i],
			Innovation:    innov,
			InnovationCov: cov,
		}}
	}

	trackLog, err := sensorlog.NewLog(boresight, entries)
	if err != nil {
		log.Fatalf("build log: %v", err)
	}
	trackLog.SetSnapshots(snaps[1:]) // no innovation before the first update
	trackLog.SetGroundtruth(&sensorlog.Groundtruth{
		Times:     timesOf(entries),
		Positions: truePos,
		Attitudes: trueAtt,
		Boresight: boresight,
	})

	if err := sensorlog.WriteSQLite(*outPath, trackLog); err != nil {
		log.Fatalf("write log: %v", err)
	}
	log.Printf("wrote %s: %d frames, noise=%.3fm", *outPath, *steps, *noise)
}

func timesOf(entries []sensorlog.Entry) []float64 {
	ts := make([]float64, len(entries))
	for i, e := range entries {
		ts[i] = e.Time
	}
	return ts
}
