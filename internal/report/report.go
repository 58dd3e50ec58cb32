// Package report renders the diagnostic surfaces of a reconstruction run:
// the ENU trajectory overlay, yaw-over-time, the innovation consistency
// chart, and a geodetic track map. Rendering failures never affect the
// reconstruction itself; callers decide which artifacts to produce.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/argos-data/trackrecon/internal/geodesy"
	"github.com/argos-data/trackrecon/internal/geom"
	"github.com/argos-data/trackrecon/internal/units"
)

// Run names one report batch: artifacts land in Dir and carry the run ID in
// their titles so outputs from different runs stay distinguishable.
type Run struct {
	ID      string
	Dir     string
	Started time.Time
}

// NewRun creates the output directory for a report batch.
func NewRun(baseDir string) (*Run, error) {
	r := &Run{ID: uuid.NewString(), Started: time.Now()}
	r.Dir = filepath.Join(baseDir, r.Started.Format("20060102_150405"))
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create run dir: %w", err)
	}
	return r, nil
}

// TrackSeries is one named trajectory to overlay on a plot.
type TrackSeries struct {
	Name      string
	Positions []r3.Vector
	Color     color.RGBA
}

// YawSeries is one named yaw-over-time series.
type YawSeries struct {
	Name  string
	Times []float64
	// Attitudes parallel to Times; yaw is extracted and unwrapped here.
	Attitudes []geom.Rotation
	Color     color.RGBA
}

// Palette used when a series does not pick its own colour, in overlay
// order: groundtruth, GPS, odometry, fused.
var Palette = []color.RGBA{
	{A: 255},                         // black
	{G: 160, A: 255},                 // green
	{R: 220, A: 255},                 // red
	{R: 100, G: 149, B: 237, A: 255}, // cornflower blue
}

// ENUProject maps ECEF positions into the local ENU frame centred at the
// first position.
func ENUProject(positions []r3.Vector) (plotter.XYs, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	return ENUProjectFrom(positions[0], positions)
}

// ENUProjectFrom maps ECEF positions into the local ENU frame centred at
// origin. This is the frame every trajectory overlay is drawn in: tracks
// from different sources are projected through the same origin so they
// share axes on the plot.
func ENUProjectFrom(origin r3.Vector, positions []r3.Vector) (plotter.XYs, error) {
	originGeo := geodesy.ECEFToGeodetic(origin)
	rot, err := geodesy.ECEFToENURotation(units.Radians(originGeo.Latitude), units.Radians(originGeo.Longitude))
	if err != nil {
		return nil, fmt.Errorf("report: ENU frame at track origin: %w", err)
	}
	pts := make(plotter.XYs, len(positions))
	for i, p := range positions {
		local := rot.Apply(p.Sub(origin))
		pts[i].X = local.X
		pts[i].Y = local.Y
	}
	return pts, nil
}

// TrajectoryPlot draws the given tracks in the ENU frame of the first
// track's origin and writes a PNG.
func (r *Run) TrajectoryPlot(series []TrackSeries) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectory (ENU) — run %s", shortID(r.ID))
	p.X.Label.Text = "east (m)"
	p.Y.Label.Text = "north (m)"

	var origin r3.Vector
	found := false
	for _, s := range series {
		if len(s.Positions) > 0 {
			origin = s.Positions[0]
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("report: no positions to plot")
	}

	for i, s := range series {
		if len(s.Positions) == 0 {
			continue
		}
		pts, err := ENUProjectFrom(origin, s.Positions)
		if err != nil {
			return "", fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		line.Color = seriesColor(s.Color, i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	out := filepath.Join(r.Dir, "trajectory.png")
	if err := p.Save(7*vg.Inch, 7*vg.Inch, out); err != nil {
		return "", fmt.Errorf("report: save trajectory plot: %w", err)
	}
	return out, nil
}

// YawPlot draws unwrapped yaw over time for each series and writes a PNG.
func (r *Run) YawPlot(series []YawSeries) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Yaw — run %s", shortID(r.ID))
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "yaw (rad)"

	for i, s := range series {
		if len(s.Times) != len(s.Attitudes) {
			return "", fmt.Errorf("report: series %q: %d times vs %d attitudes",
				s.Name, len(s.Times), len(s.Attitudes))
		}
		if len(s.Times) == 0 {
			continue
		}
		yaw := make([]float64, len(s.Attitudes))
		for j, a := range s.Attitudes {
			yaw[j] = a.Yaw()
		}
		yaw = units.UnwrapAngles(yaw)
		pts := make(plotter.XYs, len(yaw))
		for j := range yaw {
			pts[j].X = s.Times[j]
			pts[j].Y = yaw[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		line.Color = seriesColor(s.Color, i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	out := filepath.Join(r.Dir, "yaw.png")
	if err := p.Save(9*vg.Inch, 5*vg.Inch, out); err != nil {
		return "", fmt.Errorf("report: save yaw plot: %w", err)
	}
	return out, nil
}

func seriesColor(c color.RGBA, i int) color.RGBA {
	if c != (color.RGBA{}) {
		return c
	}
	return Palette[i%len(Palette)]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
