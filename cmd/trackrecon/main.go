// Command trackrecon reconstructs a vehicle trajectory from a recorded
// sensor log and renders the diagnostic overlays: GPS track, dead-reckoned
// odometry track, fused-estimator track, optional groundtruth, yaw over
// time, and the filter-consistency (NIS) chart.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/argos-data/trackrecon/internal/recorder"
	"github.com/argos-data/trackrecon/internal/report"
	"github.com/argos-data/trackrecon/internal/sensorlog"
	"github.com/argos-data/trackrecon/internal/track"
)

var (
	logPath    = flag.String("log", "", "Path to the recorded sensor log (sqlite)")
	outDir     = flag.String("out", "reports", "Directory for report output")
	confidence = flag.Float64("confidence", 0.99, "Chi-square confidence level for the NIS chart")
	skipMap    = flag.Bool("skip-map", false, "Skip the HTML track map")
)

func main() {
	flag.Parse()
	if *logPath == "" {
		log.Fatal("missing -log")
	}

	trackLog, err := sensorlog.OpenSQLite(*logPath)
	if err != nil {
		log.Fatalf("open log: %v", err)
	}
	log.Printf("loaded %s: %d frames", *logPath, trackLog.Len())

	seed, err := trackLog.SeedPose()
	if err != nil {
		log.Fatalf("seed pose: %v", err)
	}
	times := trackLog.Timestamps(math.Inf(-1), sensorlog.OpenEnd())

	traj, err := track.Integrate(trackLog, times, seed)
	if err != nil {
		log.Fatalf("integrate odometry: %v", err)
	}
	log.Printf("integrated %d odometry poses", len(traj.Positions))

	boresight := trackLog.Boresight()
	gpsRef, err := track.TranslateAllToReference(trackLog.GPSPositions(), trackLog.GPSAttitudes(), boresight)
	if err != nil {
		log.Fatalf("translate GPS track: %v", err)
	}
	odoRef, err := track.TranslateAllToReference(traj.Positions, traj.Attitudes, boresight)
	if err != nil {
		log.Fatalf("translate odometry track: %v", err)
	}

	rec := recorder.New()
	if snaps, ok := trackLog.Snapshots(); ok {
		for _, s := range snaps {
			rec.Record(s.Time, s.State)
		}
		log.Printf("replayed %d estimator snapshots", rec.Len())
	} else {
		log.Printf("log carries no estimator snapshots; fused track omitted")
	}

	run, err := report.NewRun(*outDir)
	if err != nil {
		log.Fatalf("report run: %v", err)
	}
	log.Printf("report run %s -> %s", run.ID, run.Dir)

	trackSeries := []report.TrackSeries{
		{Name: "GPS", Positions: gpsRef},
		{Name: "odometry", Positions: odoRef},
	}
	yawSeries := []report.YawSeries{
		{Name: "GPS", Times: times, Attitudes: trackLog.GPSAttitudes()},
		{Name: "odometry", Times: traj.Times, Attitudes: traj.Attitudes},
	}
	mapTracks := []report.GeoTrack{
		{Name: "GPS", Positions: gpsRef},
		{Name: "odometry", Positions: odoRef},
	}

	if gt, ok := trackLog.Groundtruth(); ok {
		gtRef, err := track.TranslateAllToReference(gt.Positions, gt.Attitudes, gt.Boresight)
		if err != nil {
			log.Fatalf("translate groundtruth track: %v", err)
		}
		trackSeries = append([]report.TrackSeries{{Name: "groundtruth", Positions: gtRef}}, trackSeries...)
		yawSeries = append([]report.YawSeries{{Name: "groundtruth", Times: gt.Times, Attitudes: gt.Attitudes}}, yawSeries...)
		mapTracks = append([]report.GeoTrack{{Name: "groundtruth", Positions: gtRef}}, mapTracks...)
	}

	if rec.Len() > 0 {
		fusedRef, err := track.TranslateAllToReference(rec.Positions(), rec.Attitudes(), boresight)
		if err != nil {
			log.Fatalf("translate fused track: %v", err)
		}
		trackSeries = append(trackSeries, report.TrackSeries{Name: "fused", Positions: fusedRef})
		yawSeries = append(yawSeries, report.YawSeries{Name: "fused", Times: rec.Timestamps(), Attitudes: rec.Attitudes()})
		mapTracks = append(mapTracks, report.GeoTrack{Name: "fused", Positions: fusedRef})
	}

	if out, err := run.TrajectoryPlot(trackSeries); err != nil {
		log.Fatalf("trajectory plot: %v", err)
	} else {
		log.Printf("wrote %s", out)
	}
	if out, err := run.YawPlot(yawSeries); err != nil {
		log.Fatalf("yaw plot: %v", err)
	} else {
		log.Printf("wrote %s", out)
	}

	if rec.Len() > 0 {
		nisTimes, nis, err := rec.InnovationSeries(*confidence)
		if err != nil {
			log.Fatalf("innovation series: %v", err)
		}
		if len(nis) > 0 {
			if out, err := run.InnovationChart(nisTimes, nis, *confidence); err != nil {
				log.Fatalf("innovation chart: %v", err)
			} else {
				log.Printf("wrote %s", out)
			}
		}
	}

	if !*skipMap {
		if out, err := run.TrackMap(mapTracks); err != nil {
			log.Fatalf("track map: %v", err)
		} else {
			log.Printf("wrote %s", out)
		}
	}
}
