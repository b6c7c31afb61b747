package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/db"
	"github.com/banshee-data/headosc/internal/feature"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/segment"
	"github.com/banshee-data/headosc/internal/timeutil"
)

func recordSession(t *testing.T, store *db.DB, n int) string {
	t.Helper()
	clock := timeutil.NewMockClock(time.Unix(2000, 0))
	rec, err := store.StartSession(context.Background(), config.DefaultTrackerConfig(), db.RecorderOptions{Clock: clock})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		p := feature.Point{X: float64(i), Y: float64(10 - i), Z: 1000}
		rec.Observe(pipeline.Result{
			Stopped: pipeline.Emit,
			Blobs:   1,
			Blob:    segment.Blob{Area: 100},
			Feature: p,
			Point:   p,
		})
		clock.Advance(50 * time.Millisecond)
	}
	require.NoError(t, rec.Close())
	return rec.SessionID()
}

func openStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadSession(t *testing.T) {
	store := openStore(t)

	_, _, err := loadSession(store, "")
	require.Error(t, err)

	id := recordSession(t, store, 5)

	session, samples, err := loadSession(store, "")
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)
	assert.Len(t, samples, 5)

	session, _, err = loadSession(store, id)
	require.NoError(t, err)
	assert.Equal(t, id, session.ID)

	_, _, err = loadSession(store, "missing")
	assert.ErrorIs(t, err, db.ErrSessionNotFound)
}

func TestPlotOutputs(t *testing.T) {
	store := openStore(t)
	id := recordSession(t, store, 10)
	session, samples, err := loadSession(store, id)
	require.NoError(t, err)

	ts := seconds(samples)
	assert.Equal(t, 0.0, ts[0])
	assert.InDelta(t, 0.45, ts[9], 1e-9)

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, plotPNG(session, samples, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	var html bytes.Buffer
	require.NoError(t, renderHTML(session, samples, &html))
	assert.Contains(t, html.String(), "echarts")
	assert.Contains(t, html.String(), session.ID)
}
