package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recorded tracking run.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Address   string     `json:"address"`
	Policy    string     `json:"policy"`
	Config    string     `json:"config"`
}

// Sessions lists sessions, most recent first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, started_at, ended_at, address, policy, config_json
		FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &s.Address, &s.Policy, &s.Config); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started)
		s.EndedAt = nullableTime(ended)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recently started session.
func (db *DB) LatestSession() (Session, error) {
	sessions, err := db.Sessions()
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return sessions[0], nil
}

// Samples returns the samples of a session in emission order.
func (db *DB) Samples(sessionID string) ([]Sample, error) {
	rows, err := db.Query(`SELECT seq, ts_unix_nano, x, y, z,
			feature_x, feature_y, feature_z, centroid_x, centroid_y, area, blob_count
		FROM samples WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var ts int64
		if err := rows.Scan(&s.Seq, &ts, &s.X, &s.Y, &s.Z,
			&s.FeatureX, &s.FeatureY, &s.FeatureZ, &s.CentroidX, &s.CentroidY, &s.Area, &s.BlobCount); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Time = time.Unix(0, ts)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// AxisSummary describes the distribution of one emitted coordinate.
type AxisSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summary describes a recorded session.
type Summary struct {
	SessionID string        `json:"session_id"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	Rate      float64       `json:"rate_hz"`
	X         AxisSummary   `json:"x"`
	Y         AxisSummary   `json:"y"`
	Z         AxisSummary   `json:"z"`
}

// Summarize computes per-axis statistics of a session's emitted points.
func (db *DB) Summarize(sessionID string) (Summary, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to look up session: %w", err)
	}
	if exists == 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	samples, err := db.Samples(sessionID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(sessionID, samples), nil
}

// Summarize computes the statistics of samples.
func Summarize(sessionID string, samples []Sample) Summary {
	sum := Summary{SessionID: sessionID, Count: len(samples)}
	if len(samples) == 0 {
		return sum
	}
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	zs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i], zs[i] = s.X, s.Y, s.Z
	}
	sum.X = summarizeAxis(xs)
	sum.Y = summarizeAxis(ys)
	sum.Z = summarizeAxis(zs)

	sum.Duration = samples[len(samples)-1].Time.Sub(samples[0].Time)
	if sum.Duration > 0 && len(samples) > 1 {
		sum.Rate = float64(len(samples)-1) / sum.Duration.Seconds()
	}
	return sum
}

func summarizeAxis(v []float64) AxisSummary {
	mean, std := stat.MeanStdDev(v, nil)
	if len(v) < 2 {
		std = 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	return AxisSummary{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(v),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    floats.Max(v),
	}
}

// nullableTime converts an optional unix-nano column.
func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64)
	return &t
}
