package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/timeutil"
)

// Sample is one recorded emission.
type Sample struct {
	Seq       int64     `json:"seq"`
	Time      time.Time `json:"time"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	FeatureX  float64   `json:"feature_x"`
	FeatureY  float64   `json:"feature_y"`
	FeatureZ  float64   `json:"feature_z"`
	CentroidX float64   `json:"centroid_x"`
	CentroidY float64   `json:"centroid_y"`
	Area      int       `json:"area"`
	BlobCount int       `json:"blob_count"`
}

// RecorderOptions tune the write path.
type RecorderOptions struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	Clock         timeutil.Clock
}

func (o RecorderOptions) withDefaults() RecorderOptions {
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// Recorder is a pipeline.Observer that writes emitted points to a
// session. Observe never blocks: when the buffer is full the sample is
// dropped and counted.
type Recorder struct {
	db        *DB
	sessionID string
	opts      RecorderOptions

	ch      chan Sample
	seq     atomic.Int64
	dropped atomic.Uint64
	written atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// StartSession creates a session row for cfg and starts a recorder
// writing into it.
func (db *DB) StartSession(ctx context.Context, cfg config.TrackerConfig, opts RecorderOptions) (*Recorder, error) {
	opts = opts.withDefaults()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session config: %w", err)
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, started_at, address, policy, config_json) VALUES (?, ?, ?, ?, ?)`,
		id, opts.Clock.Now().UnixNano(), cfg.Address, cfg.Policy, string(cfgJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Recorder{
		db:        db,
		sessionID: id,
		opts:      opts,
		ch:        make(chan Sample, opts.Buffer),
		cancel:    cancel,
	}
	r.wg.Add(1)
	go r.run(runCtx)
	log.Printf("recording session %s to %s", id, db.path)
	return r, nil
}

// SessionID returns the UUID of the session being recorded.
func (r *Recorder) SessionID() string { return r.sessionID }

// Observe implements pipeline.Observer.
func (r *Recorder) Observe(res pipeline.Result) {
	s := Sample{
		Seq:       r.seq.Add(1),
		Time:      r.opts.Clock.Now(),
		X:         res.Point.X,
		Y:         res.Point.Y,
		Z:         res.Point.Z,
		FeatureX:  res.Feature.X,
		FeatureY:  res.Feature.Y,
		FeatureZ:  res.Feature.Z,
		CentroidX: res.Blob.Centroid.X,
		CentroidY: res.Blob.Centroid.Y,
		Area:      res.Blob.Area,
		BlobCount: res.Qualifying,
	}
	select {
	case r.ch <- s:
	default:
		r.dropped.Add(1)
	}
}

// RecorderStats counts recorded and dropped samples.
type RecorderStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{Written: r.written.Load(), Dropped: r.dropped.Load()}
}

// Close flushes buffered samples, marks the session ended and stops the
// writer.
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
		_, err = r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
			r.opts.Clock.Now().UnixNano(), r.sessionID)
		if err != nil {
			err = fmt.Errorf("failed to close session %s: %w", r.sessionID, err)
		}
	})
	return err
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := r.opts.Clock.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]Sample, 0, r.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.insert(batch); err != nil {
			log.Printf("recorder: dropped %d samples: %v", len(batch), err)
			r.dropped.Add(uint64(len(batch)))
		} else {
			r.written.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case s := <-r.ch:
					batch = append(batch, s)
					if len(batch) >= r.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case s := <-r.ch:
			batch = append(batch, s)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C():
			flush()
		}
	}
}

func (r *Recorder) insert(batch []Sample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (
			session_id, seq, ts_unix_nano, x, y, z,
			feature_x, feature_y, feature_z, centroid_x, centroid_y, area, blob_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range batch {
		if _, err := stmt.Exec(
			r.sessionID, s.Seq, s.Time.UnixNano(), s.X, s.Y, s.Z,
			s.FeatureX, s.FeatureY, s.FeatureZ, s.CentroidX, s.CentroidY, s.Area, s.BlobCount,
		); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", s.Seq, err)
		}
	}
	return tx.Commit()
}

var _ pipeline.Observer = (*Recorder)(nil)
