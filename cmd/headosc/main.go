// Command headosc tracks a head (or the nearest point under an overhead
// sensor) in a depth stream and streams its position as OSC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/db"
	"github.com/banshee-data/headosc/internal/depth"
	"github.com/banshee-data/headosc/internal/monitoring"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/timeutil"
	"github.com/banshee-data/headosc/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tracker config JSON (defaults are used when empty)")
	sourceName  = flag.String("source", "synthetic", "Depth source: synthetic or none (frames published by an external driver)")
	listen      = flag.String("listen", "127.0.0.1:8081", "Debug HTTP listen address (empty disables)")
	dbPath      = flag.String("db", "", "Session recorder sqlite path (empty disables)")
	serialDev   = flag.String("serial", "", "Serial device for SLIP-framed OSC (overrides serial.device)")
	debugLog    = flag.String("debug-log", "", "File for per-tick trace logging (empty disables)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (config.TrackerConfig, error) {
	if path == "" {
		return config.DefaultTrackerConfig(), nil
	}
	return config.LoadTrackerConfig(path)
}

func newSource(name string, cfg config.TrackerConfig) (*depth.Mailbox, *depth.SyntheticSource, error) {
	mb := depth.NewMailbox()
	switch name {
	case "synthetic":
		return mb, depth.NewSyntheticSource(cfg.Sensor.Width, cfg.Sensor.Height, cfg.NearClip, cfg.FarClip), nil
	case "none":
		return mb, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q: expected synthetic or none", name)
	}
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("headosc %s: policy=%s address=%s osc=%s sensor=%d (%dx%d)",
		version.String(), cfg.Policy, cfg.Address, cfg.OSC.Addr(), cfg.Sensor.ID, cfg.Sensor.Width, cfg.Sensor.Height)

	var trace io.Writer
	if *debugLog != "" {
		f, err := os.OpenFile(*debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("failed to open debug log: %v", err)
		}
		defer f.Close()
		trace = f
	}
	pipeline.SetLogWriters(os.Stderr, os.Stderr, trace)
	monitoring.SetLogWriter(os.Stderr)

	store := config.NewStore(cfg)
	pipeline.LogConfigChanges(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := newSinkManager(ctx, cfg, *serialDev)
	if err != nil {
		log.Fatalf("failed to set up OSC output: %v", err)
	}
	defer sinks.Close()
	store.OnChange(sinks.OnConfigChange)

	mb, synth, err := newSource(*sourceName, cfg)
	if err != nil {
		log.Fatal(err)
	}

	history := monitoring.NewHistory(600)
	observers := monitoring.Observers{history}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer database.Close()

		rec, err := database.StartSession(ctx, cfg, db.RecorderOptions{})
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("recorder: %v", err)
			}
		}()
		observers = append(observers, rec)
	}

	p := pipeline.New(mb, store, sinks.Sink(), pipeline.WithObserver(observers))
	interval := pipeline.IntervalForRate(cfg.FrameRate)
	clock := timeutil.RealClock{}

	var wg sync.WaitGroup

	if synth != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			synth.Run(ctx, clock, interval, mb)
			log.Print("synthetic source stopped")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r := &pipeline.Runner{Pipeline: p, Clock: clock, Interval: interval, SummaryEvery: uint64(cfg.FrameRate * 60)}
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tracker stopped: %v", err)
		}
	}()

	if *listen != "" {
		mux := http.NewServeMux()
		admin := &monitoring.Admin{
			Store:      store,
			ConfigPath: *configPath,
			Pipeline:   p,
			History:    history,
			Stats: map[string]func() interface{}{
				"sinks":   sinks.Stats,
				"mailbox": func() interface{} { return mb.Stats() },
			},
		}
		admin.AttachAdminRoutes(mux)
		if database != nil {
			if err := database.AttachAdminRoutes(mux); err != nil {
				log.Printf("session admin routes disabled: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, *listen, mux)
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func serveHTTP(ctx context.Context, addr string, h http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()
	log.Printf("debug routes on http://%s/debug/", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}
