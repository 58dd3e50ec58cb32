package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geodesy"
)

// InnovationChart writes an interactive HTML chart of the joint normalized
// innovation squared over time. The y=1 reference is the chi-square
// critical value at the chosen confidence: samples persistently above it
// mean the filter is overconfident.
func (r *Run) InnovationChart(times, nis []float64, confidence float64) (string, error) {
	if len(times) != len(nis) {
		return "", fmt.Errorf("report: %d times vs %d NIS samples", len(times), len(nis))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Normalized innovation squared (p=%.2f)", confidence),
			Subtitle: fmt.Sprintf("run %s", shortID(r.ID)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "NIS / critical value", Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	data := make([]opts.LineData, len(times))
	for i := range times {
		data[i] = opts.LineData{Value: []any{times[i], nis[i]}}
	}
	line.AddSeries("joint NIS", data)

	out := filepath.Join(r.Dir, "innovation.html")
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("report: create innovation chart: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", fmt.Errorf("report: render innovation chart: %w", err)
	}
	return out, nil
}

// GeoTrack is one named track in geodetic coordinates for the map view.
type GeoTrack struct {
	Name      string
	Positions []r3.Vector // ECEF; converted on render
}

// TrackMap writes an HTML longitude/latitude overlay of the given tracks.
// It is the offline stand-in for a tiled map: same overlay, no tile
// provider dependency.
func (r *Run) TrackMap(tracks []GeoTrack) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Track map (WGS84)",
			Subtitle: fmt.Sprintf("run %s", shortID(r.ID)),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "longitude (deg)", Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latitude (deg)", Type: "value", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	plotted := 0
	for _, t := range tracks {
		if len(t.Positions) == 0 {
			continue
		}
		coords := geodesy.ECEFToGeodeticAll(t.Positions)
		data := make([]opts.LineData, len(coords))
		for i, c := range coords {
			data[i] = opts.LineData{Value: []any{c.Longitude, c.Latitude}}
		}
		line.AddSeries(t.Name, data)
		plotted++
	}
	if plotted == 0 {
		return "", fmt.Errorf("report: no tracks to map")
	}

	out := filepath.Join(r.Dir, "map.html")
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("report: create track map: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return "", fmt.Errorf("report: render track map: %w", err)
	}
	return out, nil
}
