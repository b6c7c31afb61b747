package monitoring

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/feature"
	"github.com/banshee-data/headosc/internal/httputil"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/security"
	"github.com/banshee-data/headosc/internal/version"
)

// Admin serves the tracker's debug routes.
type Admin struct {
	Store *config.Store
	// ConfigPath is where reload reads from and save writes to. Empty
	// disables both routes.
	ConfigPath string
	Pipeline   *pipeline.Pipeline
	History    *History
	// Stats are extra named counters (sinks, recorder, mailbox) included
	// in the status output.
	Stats map[string]func() interface{}
}

// LastPoint is the debug readout of the most recent emission.
type LastPoint struct {
	Point      feature.Point `json:"point"`
	Feature    feature.Point `json:"feature"`
	Centroid   [2]float64    `json:"centroid"`
	Area       int           `json:"area"`
	Blobs      int           `json:"blobs"`
	Qualifying int           `json:"qualifying"`
	// Highest is the boundary point used for interpolation, absent for
	// the nearest policy.
	Highest *[2]int `json:"highest,omitempty"`
}

// Status is the body of /debug/status.
type Status struct {
	Version  string                 `json:"version"`
	Config   config.TrackerConfig   `json:"config"`
	Pipeline pipeline.Stats         `json:"pipeline"`
	Last     *LastPoint             `json:"last,omitempty"`
	Stats    map[string]interface{} `json:"stats,omitempty"`
}

// Status gathers the current status.
func (a *Admin) Status() Status {
	cfg := a.Store.Snapshot()
	st := Status{
		Version: version.String(),
		Config:  cfg,
	}
	if a.Pipeline != nil {
		st.Pipeline = a.Pipeline.Stats()
		if res, ok := a.Pipeline.Last(); ok {
			c := res.Blob.Centroid
			st.Last = &LastPoint{
				Point:      res.Point,
				Feature:    res.Feature,
				Centroid:   [2]float64{c.X, c.Y},
				Area:       res.Blob.Area,
				Blobs:      res.Blobs,
				Qualifying: res.Qualifying,
			}
			if h := res.Highest; h != nil {
				st.Last.Highest = &[2]int{h.X, h.Y}
			}
		}
	}
	if len(a.Stats) > 0 {
		st.Stats = make(map[string]interface{}, len(a.Stats))
		for name, fn := range a.Stats {
			st.Stats[name] = fn()
		}
	}
	return st
}

// AttachAdminRoutes mounts the tracker routes under /debug/.
func (a *Admin) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("status", "tracker status and last emitted point", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, a.Status())
	})

	debug.HandleFunc("config", "current tracker configuration", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, a.Store.Snapshot())
	})

	debug.HandleSilentFunc("config-reset", httputil.PostOnly(func(w http.ResponseWriter, r *http.Request) {
		a.Store.Reset()
		Logf("config reset to startup values")
		httputil.WriteJSONOK(w, a.Store.Snapshot())
	}))

	// config-reload and config-save take an optional preset name, stored
	// as <name>.json beside the main config file.
	debug.HandleSilentFunc("config-reload", httputil.PostOnly(func(w http.ResponseWriter, r *http.Request) {
		path, ok := a.configFile(w, r)
		if !ok {
			return
		}
		cfg, err := a.Store.Reload(path)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		Logf("config reloaded from %s", path)
		httputil.WriteJSONOK(w, cfg)
	}))

	debug.HandleSilentFunc("config-save", httputil.PostOnly(func(w http.ResponseWriter, r *http.Request) {
		path, ok := a.configFile(w, r)
		if !ok {
			return
		}
		if err := a.Store.Save(path); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		Logf("config saved to %s", path)
		httputil.WriteJSONOK(w, map[string]string{"saved": path})
	}))

	// threshold?delta=-1 / threshold?delta=1 nudge the segmentation threshold.
	debug.HandleSilentFunc("threshold", httputil.PostOnly(func(w http.ResponseWriter, r *http.Request) {
		delta, err := strconv.Atoi(r.FormValue("delta"))
		if err != nil {
			httputil.BadRequest(w, "delta must be an integer")
			return
		}
		cfg := a.Store.Update(func(c *config.TrackerConfig) { c.NudgeThreshold(delta) })
		httputil.WriteJSONOK(w, map[string]int{"threshold": cfg.Threshold})
	}))

	if a.History != nil {
		debug.HandleFunc("trace", "scatter of recently emitted points", a.handleTrace)
	}
}

// configFile resolves the file a reload or save request targets.
func (a *Admin) configFile(w http.ResponseWriter, r *http.Request) (string, bool) {
	if a.ConfigPath == "" {
		httputil.Conflict(w, "no config file configured")
		return "", false
	}
	name := r.FormValue("name")
	if name == "" {
		return a.ConfigPath, true
	}
	path, err := security.PresetPath(filepath.Dir(a.ConfigPath), name)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return "", false
	}
	return path, true
}

func (a *Admin) handleTrace(w http.ResponseWriter, r *http.Request) {
	results := a.History.Results()
	points := make([]opts.ScatterData, 0, len(results))
	centroids := make([]opts.ScatterData, 0, len(results))
	for _, res := range results {
		points = append(points, opts.ScatterData{Value: []interface{}{res.Feature.X, res.Feature.Y}})
		centroids = append(centroids, opts.ScatterData{Value: []interface{}{res.Blob.Centroid.X, res.Blob.Centroid.Y}})
	}

	cfg := a.Store.Snapshot()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "headosc trace", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: cfg.Address, Subtitle: fmt.Sprintf("last %d emissions", len(results))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: cfg.Sensor.Width, Name: "x (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: cfg.Sensor.Height, Name: "y (px, down)"}),
	)
	scatter.AddSeries("feature", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("centroid", centroids, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
