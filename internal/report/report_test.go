package report

import (
	"math"
	"os"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geodesy"
	"github.com/argos-data/trackrecon/internal/geom"
)

func TestENUProjectKnownDisplacement(t *testing.T) {
	// At lat=0, lon=0 the ECEF y axis is local east and z is local north.
	origin := geodesy.GeodeticToECEF(geodesy.Geodetic{Longitude: 0, Latitude: 0, Altitude: 0})
	pts, err := ENUProject([]r3.Vector{
		origin,
		origin.Add(r3.Vector{Y: 10}),
		origin.Add(r3.Vector{Z: 25}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pts[0].X) > 1e-9 || math.Abs(pts[0].Y) > 1e-9 {
		t.Fatalf("origin projects to %v, want (0,0)", pts[0])
	}
	if math.Abs(pts[1].X-10) > 1e-9 || math.Abs(pts[1].Y) > 1e-9 {
		t.Fatalf("east displacement projects to %v, want (10,0)", pts[1])
	}
	if math.Abs(pts[2].X) > 1e-9 || math.Abs(pts[2].Y-25) > 1e-9 {
		t.Fatalf("north displacement projects to %v, want (0,25)", pts[2])
	}
}

func TestENUProjectFromSharedOrigin(t *testing.T) {
	// Overlaid tracks are projected through one origin: a second track
	// starting 10 m east of the first must not collapse onto (0,0).
	origin := geodesy.GeodeticToECEF(geodesy.Geodetic{Longitude: 0, Latitude: 0, Altitude: 0})
	other := []r3.Vector{origin.Add(r3.Vector{Y: 10}), origin.Add(r3.Vector{Y: 20})}

	pts, err := ENUProjectFrom(origin, other)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pts[0].X-10) > 1e-9 || math.Abs(pts[1].X-20) > 1e-9 {
		t.Fatalf("shared-origin projection = %v, want east offsets 10 and 20", pts)
	}

	// ENUProject is the single-track convenience over the same
	// projection.
	own, err := ENUProject(other)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(own[0].X) > 1e-9 || math.Abs(own[1].X-10) > 1e-9 {
		t.Fatalf("self-origin projection = %v, want east offsets 0 and 10", own)
	}
}

func TestENUProjectEmpty(t *testing.T) {
	pts, err := ENUProject(nil)
	if err != nil || pts != nil {
		t.Fatalf("got %v, %v", pts, err)
	}
}

func testTrack(n int) []r3.Vector {
	origin := geodesy.GeodeticToECEF(geodesy.Geodetic{Longitude: 11.6, Latitude: 48.2, Altitude: 520})
	out := make([]r3.Vector, n)
	for i := range out {
		out[i] = origin.Add(r3.Vector{X: float64(i) * 0.5, Y: float64(i)})
	}
	return out
}

func TestTrajectoryPlotWritesPNG(t *testing.T) {
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out, err := run.TrajectoryPlot([]TrackSeries{
		{Name: "GPS", Positions: testTrack(20)},
		{Name: "odometry", Positions: testTrack(18)},
	})
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("empty plot file")
	}
}

func TestTrajectoryPlotNoData(t *testing.T) {
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := run.TrajectoryPlot([]TrackSeries{{Name: "empty"}}); err == nil {
		t.Fatal("plot with no positions accepted")
	}
}

func TestYawPlotWritesPNG(t *testing.T) {
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	times := make([]float64, 30)
	atts := make([]geom.Rotation, 30)
	for i := range times {
		times[i] = float64(i) * 0.25
		atts[i] = geom.RotationAboutZ(0.4 * float64(i)) // crosses ±π
	}
	out, err := run.YawPlot([]YawSeries{{Name: "odometry", Times: times, Attitudes: atts}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}

func TestInnovationChartWritesHTML(t *testing.T) {
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out, err := run.InnovationChart([]float64{1, 2, 3}, []float64{0.2, 0.5, 1.3}, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "joint NIS") {
		t.Fatal("chart HTML missing series name")
	}

	if _, err := run.InnovationChart([]float64{1}, []float64{1, 2}, 0.99); err == nil {
		t.Fatal("mismatched series lengths accepted")
	}
}

func TestTrackMapWritesHTML(t *testing.T) {
	run, err := NewRun(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out, err := run.TrackMap([]GeoTrack{{Name: "GPS", Positions: testTrack(10)}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}

	if _, err := run.TrackMap(nil); err == nil {
		t.Fatal("empty map accepted")
	}
}
