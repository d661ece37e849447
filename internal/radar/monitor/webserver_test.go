package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/l6targets"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"github.com/banshee-data/radarchain/internal/radar/synthetic"
	"github.com/banshee-data/radarchain/internal/units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func testConfig() *config.RadarConfig {
	cfg := config.EmptyRadarConfig()
	cfg.Chirps = ptr(32)
	cfg.Samples = ptr(128)
	cfg.CFARFalseAlarmRate = ptr(1e-9)
	cfg.Workers = ptr(2)
	return cfg
}

// processOne runs a single-reflector frame through a fresh processor and
// returns the processor, its registry and the result.
func processOne(t *testing.T) (*pipeline.Processor, *prometheus.Registry, *pipeline.FrameResult) {
	t.Helper()
	muteLogs(t)

	cfg := testConfig()
	reg := prometheus.NewRegistry()
	p, err := pipeline.NewProcessor(cfg, monitoring.NewMetrics(reg))
	require.NoError(t, err)

	probe := synthetic.NewGenerator(cfg, 0, 0)
	scene := []synthetic.Reflector{probe.AtBins(20, 16, 10*math.Pi/180, 0, 1)}
	gen := synthetic.NewGenerator(cfg, 1e-3*probe.Amplitude(scene[0]), 7)

	res, err := p.Process(context.Background(), gen.Frame(4, scene))
	require.NoError(t, err)
	require.Len(t, res.Filtered, 1)
	return p, reg, res
}

func muteLogs(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "localhost:0"})
	rec := get(t, ws.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status": "ok"`)
	assert.Contains(t, rec.Body.String(), `"version": "dev`)
}

type stubAdmin struct{}

func (stubAdmin) AttachAdminRoutes(mux *http.ServeMux) error {
	mux.HandleFunc("/debug/stub", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return nil
}

func TestAdminRoutesMounted(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "localhost:0", Admin: stubAdmin{}})
	assert.Equal(t, http.StatusTeapot, get(t, ws.Handler(), "/debug/stub").Code)
}

func TestEndpointsBeforeFirstFrame(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "localhost:0"})
	for _, path := range []string{"/api/radar/latest", "/debug/targets", "/debug/ego", "/debug/range-doppler.png"} {
		assert.Equal(t, http.StatusNotFound, get(t, ws.Handler(), path).Code, path)
	}
}

func TestLatestFrame(t *testing.T) {
	p, reg, res := processOne(t)
	ws := NewWebServer(WebServerConfig{Address: "localhost:0", SensorID: "front", Gatherer: reg, Estimator: p.Estimator()})
	require.NoError(t, ws.Consume(context.Background(), res))

	rec := get(t, ws.Handler(), "/api/radar/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var got latestJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "front", got.SensorID)
	assert.Equal(t, uint64(4), got.FrameIndex)
	assert.Equal(t, uint64(1), got.FramesSeen)
	assert.Equal(t, 1, got.Peaks)
	assert.False(t, got.EgoConfident)
	require.Len(t, got.Targets, 1)
	assert.Empty(t, got.Ghosts)
	assert.Equal(t, 20, got.Targets[0].RangeBin)
	assert.InDelta(t, 10, got.Targets[0].AzimuthDeg, 0.5)
	require.NotNil(t, got.Targets[0].RCS)
	assert.InDelta(t, 1, *got.Targets[0].RCS, 5e-3)
	assert.Len(t, got.Diagnostics, 1)

	post := httptest.NewRecorder()
	ws.Handler().ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/radar/latest", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestLatestFrameSpeedUnits(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "localhost:0", Units: units.KPH})
	res := &pipeline.FrameResult{
		FrameIndex: 1,
		Filtered:   []l6targets.Target{{RangeBin: 3, RelativeSpeed: -2.5, RCS: math.NaN()}},
	}
	res.Ego.Speed = 10
	require.NoError(t, ws.Consume(context.Background(), res))

	var got latestJSON
	require.NoError(t, json.Unmarshal(get(t, ws.Handler(), "/api/radar/latest").Body.Bytes(), &got))
	assert.Equal(t, units.KPH, got.SpeedUnits)
	assert.InDelta(t, 36, got.EgoSpeed, 1e-9)
	require.Len(t, got.Targets, 1)
	assert.InDelta(t, -9, got.Targets[0].RelativeSpeed, 1e-9)
	assert.Nil(t, got.Targets[0].RCS)

	bogus := NewWebServer(WebServerConfig{Address: "localhost:0", Units: "furlongs"})
	assert.Equal(t, units.MPS, bogus.units)
}

func TestMetricsEndpoint(t *testing.T) {
	_, reg, _ := processOne(t)
	ws := NewWebServer(WebServerConfig{Address: "localhost:0", Gatherer: reg})

	rec := get(t, ws.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "radarchain_frames_processed_total 1")
	assert.Contains(t, rec.Body.String(), "radarchain_stage_seconds")
}

func TestImagesAndCharts(t *testing.T) {
	p, _, res := processOne(t)
	ws := NewWebServer(WebServerConfig{Address: "localhost:0", Estimator: p.Estimator()})
	require.NoError(t, ws.Consume(context.Background(), res))
	h := ws.Handler()

	for _, path := range []string{"/debug/range-doppler.png", "/debug/spectrum.png", "/debug/spectrum.png?peak=0"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"), path)
	}
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/debug/spectrum.png?peak=3").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/debug/spectrum.png?peak=x").Code)

	for _, path := range []string{"/debug/targets", "/debug/ego"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "echarts")
	}
}

func TestSpectrumWithoutEstimator(t *testing.T) {
	_, _, res := processOne(t)
	ws := NewWebServer(WebServerConfig{Address: "localhost:0"})
	require.NoError(t, ws.Consume(context.Background(), res))
	assert.Equal(t, http.StatusNotFound, get(t, ws.Handler(), "/debug/spectrum.png").Code)
}

func TestEgoHistoryIsBounded(t *testing.T) {
	ws := NewWebServer(WebServerConfig{Address: "localhost:0"})
	for i := range egoHistory + 10 {
		res := &pipeline.FrameResult{FrameIndex: uint64(i)}
		res.Ego.Speed = float64(i)
		require.NoError(t, ws.Consume(context.Background(), res))
	}
	require.Len(t, ws.ego, egoHistory)
	assert.Equal(t, uint64(10), ws.ego[0].FrameIndex)
	assert.Equal(t, float64(egoHistory+9), ws.ego[egoHistory-1].Speed)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	muteLogs(t)
	ws := NewWebServer(WebServerConfig{Address: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestServeReturnsAfterServerStops(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	monitoring.SetLogger(func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	})
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()

	ws := NewWebServer(WebServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Serve(ctx, lis) }()

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)

	// Nothing may log once Serve has returned.
	monitoring.SetLogger(nil)
	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "listening on "+addr)
	assert.Contains(t, lines[1], "shutting down")
}

func TestPlotterWritesFiles(t *testing.T) {
	p, _, res := processOne(t)
	dir := filepath.Join(t.TempDir(), "plots")
	pl := NewPlotter(dir, 2, p.Estimator())
	require.NoError(t, pl.Start())

	require.NoError(t, pl.Consume(context.Background(), res))
	assert.Equal(t, 2, pl.Written())
	for _, name := range []string{"frame_000004_range_doppler.png", "frame_000004_peak_00_spectrum.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	odd := *res
	odd.FrameIndex = 5
	require.NoError(t, pl.Consume(context.Background(), &odd))
	assert.Equal(t, 2, pl.Written())
}

func TestSpectrumPlotRejectsMismatch(t *testing.T) {
	p, _, _ := processOne(t)
	_, err := SpectrumPlot(p.Estimator(), []float64{1, 2}, "bad")
	assert.Error(t, err)
}
