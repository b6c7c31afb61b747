package db

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/feature"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/segment"
	"github.com/banshee-data/headosc/internal/testutil"
	"github.com/banshee-data/headosc/internal/timeutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(x, y, z float64, area int) pipeline.Result {
	return pipeline.Result{
		Stopped:    pipeline.Emit,
		Qualifying: 1,
		Blobs:      1,
		Blob:       segment.Blob{Centroid: segment.Point{X: x, Y: y + 10}, Area: area},
		Feature:    feature.Point{X: x, Y: y, Z: z},
		Point:      feature.Point{X: x, Y: y, Z: z},
	}
}

func TestOpen_AppliesPragmasAndMigrations(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('samples') WHERE name = 'blob_count'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestRecorder_WritesSamples(t *testing.T) {
	db := openTestDB(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))

	rec, err := db.StartSession(context.Background(), config.DefaultTrackerConfig(), RecorderOptions{Clock: clock, BatchSize: 2})
	require.NoError(t, err)
	require.NotEmpty(t, rec.SessionID())

	for i := 0; i < 5; i++ {
		rec.Observe(result(float64(i), float64(2*i), 1000+float64(i), 100+i))
		clock.Advance(100 * time.Millisecond)
	}
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
	assert.Equal(t, RecorderStats{Written: 5}, rec.Stats())

	samples, err := db.Samples(rec.SessionID())
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, int64(1), samples[0].Seq)
	assert.Equal(t, 4.0, samples[4].X)
	assert.Equal(t, 8.0, samples[4].Y)
	assert.Equal(t, 18.0, samples[4].CentroidY)
	assert.Equal(t, 104, samples[4].Area)
	assert.Equal(t, 1, samples[4].BlobCount)
	assert.Equal(t, time.Unix(1000, 0), samples[0].Time)

	sessions, err := db.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "/head", sessions[0].Address)
	assert.Equal(t, config.PolicyInterpolated, sessions[0].Policy)
	require.NotNil(t, sessions[0].EndedAt)

	var stored config.TrackerConfig
	require.NoError(t, json.Unmarshal([]byte(sessions[0].Config), &stored))
	assert.Equal(t, config.DefaultTrackerConfig(), stored)
}

func TestRecorder_BlobCountIsUncapped(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.StartSession(context.Background(), config.DefaultTrackerConfig(), RecorderOptions{})
	require.NoError(t, err)

	res := result(1, 2, 3, 10)
	res.Qualifying = 3
	rec.Observe(res)
	require.NoError(t, rec.Close())

	samples, err := db.Samples(rec.SessionID())
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 3, samples[0].BlobCount)
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.StartSession(context.Background(), config.DefaultTrackerConfig(), RecorderOptions{Buffer: 1, BatchSize: 1000, FlushInterval: time.Hour})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		rec.Observe(result(1, 2, 3, 10))
	}
	require.NoError(t, rec.Close())
	st := rec.Stats()
	assert.Equal(t, uint64(100), st.Written+st.Dropped)
}

func TestSummarize(t *testing.T) {
	start := time.Unix(0, 0)
	samples := []Sample{
		{Time: start, X: 1, Y: 10, Z: 100},
		{Time: start.Add(time.Second), X: 2, Y: 20, Z: 100},
		{Time: start.Add(2 * time.Second), X: 3, Y: 30, Z: 100},
	}
	sum := Summarize("s", samples)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 2*time.Second, sum.Duration)
	assert.InDelta(t, 1.0, sum.Rate, 1e-12)
	assert.InDelta(t, 2.0, sum.X.Mean, 1e-12)
	assert.InDelta(t, 1.0, sum.X.StdDev, 1e-12)
	assert.Equal(t, 1.0, sum.X.Min)
	assert.Equal(t, 3.0, sum.X.Max)
	assert.Equal(t, 20.0, sum.Y.Median)
	assert.Equal(t, 0.0, sum.Z.StdDev)

	one := Summarize("s", samples[:1])
	assert.Equal(t, 0.0, one.X.StdDev)
	assert.Zero(t, one.Rate)

	assert.Equal(t, Summary{SessionID: "s"}, Summarize("s", nil))
}

func TestDBSummarize_UnknownSession(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Summarize("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = db.LatestSession()
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.StartSession(context.Background(), config.DefaultTrackerConfig(), RecorderOptions{})
	require.NoError(t, err)
	rec.Observe(result(1, 2, 3, 4))
	require.NoError(t, rec.Close())

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	get := func(path string) *httptest.ResponseRecorder {
		return testutil.ServeDebug(mux, http.MethodGet, path, nil)
	}

	w := get("/debug/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)

	w = get("/debug/session-summary")
	require.Equal(t, http.StatusOK, w.Code)
	var sum Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, rec.SessionID(), sum.SessionID)
	assert.Equal(t, 1, sum.Count)

	w = get("/debug/session-summary?id=nope")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get("/debug/backup")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	w = get("/debug/tailsql/")
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}
