// Command plot-session renders the emitted coordinates of a recorded
// session as a PNG time series and an interactive HTML chart.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/headosc/internal/db"
)

var (
	dbFile    = flag.String("db", "headosc.db", "Path to the session database")
	sessionID = flag.String("session", "", "Session ID to plot (default: latest)")
	outDir    = flag.String("out", ".", "Output directory")
)

func main() {
	flag.Parse()

	store, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	session, samples, err := loadSession(store, *sessionID)
	if err != nil {
		log.Fatal(err)
	}
	if len(samples) == 0 {
		log.Fatalf("session %s has no samples", session.ID)
	}

	pngPath := filepath.Join(*outDir, fmt.Sprintf("session_%s.png", session.ID))
	if err := plotPNG(session, samples, pngPath); err != nil {
		log.Fatal(err)
	}
	htmlPath := filepath.Join(*outDir, fmt.Sprintf("session_%s.html", session.ID))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("failed to create %s: %v", htmlPath, err)
	}
	if err := renderHTML(session, samples, f); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}

	sum := db.Summarize(session.ID, samples)
	log.Printf("session %s: %d samples over %v (%.1f Hz)", session.ID, sum.Count, sum.Duration, sum.Rate)
	log.Printf("wrote %s and %s", pngPath, htmlPath)
}

func loadSession(store *db.DB, id string) (db.Session, []db.Sample, error) {
	var (
		session db.Session
		err     error
	)
	if id == "" {
		session, err = store.LatestSession()
		if errors.Is(err, db.ErrSessionNotFound) {
			return session, nil, fmt.Errorf("no sessions recorded in %s", store.Path())
		}
	} else {
		session, err = findSession(store, id)
	}
	if err != nil {
		return session, nil, err
	}
	samples, err := store.Samples(session.ID)
	if err != nil {
		return session, nil, err
	}
	return session, samples, nil
}

func findSession(store *db.DB, id string) (db.Session, error) {
	sessions, err := store.Sessions()
	if err != nil {
		return db.Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return db.Session{}, fmt.Errorf("%w: %s", db.ErrSessionNotFound, id)
}

// seconds returns each sample's offset from the first sample.
func seconds(samples []db.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Time.Sub(samples[0].Time).Seconds()
	}
	return out
}

func plotPNG(session db.Session, samples []db.Sample, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", session.Address, session.Policy)
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	ts := seconds(samples)
	series := []struct {
		name  string
		value func(db.Sample) float64
		color color.RGBA
	}{
		{"x", func(s db.Sample) float64 { return s.X }, color.RGBA{R: 200, A: 255}},
		{"y", func(s db.Sample) float64 { return s.Y }, color.RGBA{G: 150, A: 255}},
		{"z", func(s db.Sample) float64 { return s.Z }, color.RGBA{B: 200, A: 255}},
	}
	for _, ser := range series {
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i] = plotter.XY{X: ts[i], Y: ser.value(s)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build %s line: %w", ser.name, err)
		}
		line.Color = ser.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(ser.name, line)
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

func renderHTML(session db.Session, samples []db.Sample, w io.Writer) error {
	ts := seconds(samples)
	xAxis := make([]string, len(samples))
	xs := make([]opts.LineData, len(samples))
	ys := make([]opts.LineData, len(samples))
	zs := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xAxis[i] = fmt.Sprintf("%.2f", ts[i])
		xs[i] = opts.LineData{Value: s.X}
		ys[i] = opts.LineData{Value: s.Y}
		zs[i] = opts.LineData{Value: s.Z}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "headosc session " + session.ID, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: session.Address, Subtitle: fmt.Sprintf("%s, %d samples", session.Policy, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seconds"}),
	)
	line.SetXAxis(xAxis).
		AddSeries("x", xs).
		AddSeries("y", ys).
		AddSeries("z", zs)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
