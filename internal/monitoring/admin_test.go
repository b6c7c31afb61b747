package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	goosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headosc/internal/config"
	"github.com/banshee-data/headosc/internal/depth"
	"github.com/banshee-data/headosc/internal/osc"
	"github.com/banshee-data/headosc/internal/pipeline"
	"github.com/banshee-data/headosc/internal/testutil"
)

type adminFixture struct {
	admin *Admin
	mux   *http.ServeMux
	mb    *depth.Mailbox
	path  string
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	original := Logf
	SetLogger(nil)
	t.Cleanup(func() { Logf = original })

	cfg := config.DefaultTrackerConfig()
	cfg.AreaMin = 1
	cfg.Sensor = config.SensorConfig{Width: 64, Height: 48}
	store := config.NewStore(cfg)

	path := filepath.Join(t.TempDir(), "tracker.json")
	require.NoError(t, config.SaveTrackerConfig(path, cfg))

	mb := depth.NewMailbox()
	hist := NewHistory(8)
	p := pipeline.New(mb, store, osc.SinkFunc(func(*goosc.Message) {}), pipeline.WithObserver(hist))

	a := &Admin{
		Store:      store,
		ConfigPath: path,
		Pipeline:   p,
		History:    hist,
		Stats: map[string]func() interface{}{
			"mailbox": func() interface{} { return mb.Stats() },
		},
	}
	mux := http.NewServeMux()
	a.AttachAdminRoutes(mux)
	return &adminFixture{admin: a, mux: mux, mb: mb, path: path}
}

func (f *adminFixture) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	return testutil.ServeDebug(f.mux, method, path, form)
}

func TestAdmin_Status(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodGet, "/debug/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Nil(t, st.Last)
	assert.Contains(t, st.Stats, "mailbox")

	f.mb.Publish(testutil.Figure())
	require.Equal(t, pipeline.Emit, f.admin.Pipeline.Tick())

	w = f.do(http.MethodGet, "/debug/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.NotNil(t, st.Last)
	require.NotNil(t, st.Last.Highest)
	assert.Equal(t, [2]int{23, 16}, *st.Last.Highest)
	assert.Equal(t, 216, st.Last.Area)
	assert.Equal(t, uint64(1), st.Pipeline.Emitted)
}

func TestAdmin_StatusReportsHighestUsedAtEmission(t *testing.T) {
	f := newAdminFixture(t)
	f.mb.Publish(testutil.Figure())
	require.Equal(t, pipeline.Emit, f.admin.Pipeline.Tick())

	// No boundary pixel lies within 0.1 of the centroid column.
	f.admin.Store.Update(func(c *config.TrackerConfig) { c.HighestPointBand = 0.1 })

	w := f.do(http.MethodGet, "/debug/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.NotNil(t, st.Last)
	require.NotNil(t, st.Last.Highest)
	assert.Equal(t, [2]int{23, 16}, *st.Last.Highest)
}

func TestAdmin_Threshold(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodPost, "/debug/threshold", url.Values{"delta": {"-10"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 150, f.admin.Store.Snapshot().Threshold)

	w = f.do(http.MethodPost, "/debug/threshold", url.Values{"delta": {"1000"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 255, f.admin.Store.Snapshot().Threshold)

	w = f.do(http.MethodPost, "/debug/threshold", url.Values{"delta": {"up"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/debug/threshold?delta=1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAdmin_ConfigSaveReloadReset(t *testing.T) {
	f := newAdminFixture(t)

	f.admin.Store.Update(func(c *config.TrackerConfig) { c.Address = "/saved" })
	w := f.do(http.MethodPost, "/debug/config-save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	f.admin.Store.Update(func(c *config.TrackerConfig) { c.Address = "/changed" })
	w = f.do(http.MethodPost, "/debug/config-reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/saved", f.admin.Store.Snapshot().Address)

	w = f.do(http.MethodPost, "/debug/config-reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/head", f.admin.Store.Snapshot().Address)

	require.NoError(t, os.WriteFile(f.path, []byte(`{"threshold": 999}`), 0644))
	w = f.do(http.MethodPost, "/debug/config-reload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 160, f.admin.Store.Snapshot().Threshold)
}

func TestAdmin_ConfigPresets(t *testing.T) {
	f := newAdminFixture(t)

	f.admin.Store.Update(func(c *config.TrackerConfig) { c.Address = "/overhead" })
	w := f.do(http.MethodPost, "/debug/config-save", url.Values{"name": {"../stage left"}})
	require.Equal(t, http.StatusOK, w.Code)
	preset := filepath.Join(filepath.Dir(f.path), "stage_left.json")
	_, err := os.Stat(preset)
	require.NoError(t, err)

	f.admin.Store.Reset()
	w = f.do(http.MethodPost, "/debug/config-reload", url.Values{"name": {"stage_left"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/overhead", f.admin.Store.Snapshot().Address)

	w = f.do(http.MethodPost, "/debug/config-reload", url.Values{"name": {"missing"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.admin.ConfigPath = ""
	w = f.do(http.MethodPost, "/debug/config-save", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdmin_Trace(t *testing.T) {
	f := newAdminFixture(t)
	f.mb.Publish(testutil.Figure())
	f.admin.Pipeline.Tick()

	w := f.do(http.MethodGet, "/debug/trace", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "feature")
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	assert.Empty(t, h.Results())
	for i := 1; i <= 5; i++ {
		h.Observe(pipeline.Result{Blobs: i})
	}
	res := h.Results()
	require.Len(t, res, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{res[0].Blobs, res[1].Blobs, res[2].Blobs})
}

func TestObservers(t *testing.T) {
	a, b := NewHistory(2), NewHistory(2)
	Observers{a, b}.Observe(pipeline.Result{Blobs: 7})
	assert.Len(t, a.Results(), 1)
	assert.Len(t, b.Results(), 1)
}
