// Package monitor serves a debugging HTTP interface for a running radar
// chain: health, Prometheus metrics, the latest frame as JSON, go-echarts
// pages and gonum/plot images.
package monitor

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/radarchain/internal/httputil"
	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/l5doa"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"github.com/banshee-data/radarchain/internal/units"
	"github.com/banshee-data/radarchain/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// egoHistory bounds the ego speed series kept for the chart.
const egoHistory = 300

// WebServer exposes the most recent frame result over HTTP. It doubles as a
// pipeline.Sink so the processing loop can feed it directly.
type WebServer struct {
	address  string
	sensorID string
	gatherer prometheus.Gatherer
	units    string
	est      *l5doa.Estimator
	server   *http.Server

	mu     sync.RWMutex
	latest *pipeline.FrameResult
	frames uint64
	ego    []egoSample
}

type egoSample struct {
	FrameIndex uint64
	Speed      float64
	Confident  bool
}

// AdminRoutes mounts extra debug handlers, such as the store's SQL console.
type AdminRoutes interface {
	AttachAdminRoutes(mux *http.ServeMux) error
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address   string
	SensorID  string
	Gatherer  prometheus.Gatherer // nil serves prometheus.DefaultGatherer
	Estimator *l5doa.Estimator    // needed for spectrum plots
	Units     string              // speed units for JSON output; empty means m/s
	Admin     AdminRoutes
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  config.Address,
		sensorID: config.SensorID,
		gatherer: config.Gatherer,
		units:    config.Units,
		est:      config.Estimator,
	}
	if !units.IsValid(ws.units) {
		ws.units = units.MPS
	}
	if ws.gatherer == nil {
		ws.gatherer = prometheus.DefaultGatherer
	}
	mux := ws.setupRoutes()
	if config.Admin != nil {
		if err := config.Admin.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("[monitor] admin routes disabled: %v", err)
		}
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the route multiplexer, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ws.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ws.address, err)
	}
	return ws.Serve(ctx, lis)
}

// Serve is Start on an existing listener. It returns only after the
// listener is closed.
func (ws *WebServer) Serve(ctx context.Context, lis net.Listener) error {
	monitoring.Logf("[monitor] HTTP server listening on %s", lis.Addr())
	errCh := make(chan error, 1)
	go func() {
		if err := ws.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("[monitor] shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[monitor] HTTP server force close error: %v", err)
		}
	}
	// The serve goroutine has exited once errCh is closed.
	<-errCh
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/radar/latest", ws.handleLatest)
	mux.HandleFunc("/debug/targets", ws.handleTargetsChart)
	mux.HandleFunc("/debug/ego", ws.handleEgoChart)
	mux.HandleFunc("/debug/range-doppler.png", ws.handleRangeDopplerPNG)
	mux.HandleFunc("/debug/spectrum.png", ws.handleSpectrumPNG)

	return mux
}

// Name implements pipeline.Sink.
func (ws *WebServer) Name() string { return "monitor" }

// Consume implements pipeline.Sink by keeping the newest result.
func (ws *WebServer) Consume(_ context.Context, res *pipeline.FrameResult) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.latest = res
	ws.frames++
	ws.ego = append(ws.ego, egoSample{FrameIndex: res.FrameIndex, Speed: res.Ego.Speed, Confident: res.Ego.Confident})
	if len(ws.ego) > egoHistory {
		ws.ego = append(ws.ego[:0], ws.ego[len(ws.ego)-egoHistory:]...)
	}
	return nil
}

func (ws *WebServer) snapshot() (*pipeline.FrameResult, uint64) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.latest, ws.frames
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "radar", "version": %q, "timestamp": "%s"}`, version.String(), time.Now().UTC().Format(time.RFC3339))
}

type targetJSON struct {
	RangeBin      int      `json:"range_bin"`
	DopplerBin    int      `json:"doppler_bin"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	Z             float64  `json:"z"`
	Range         float64  `json:"range_m"`
	AzimuthDeg    float64  `json:"azimuth_deg"`
	ElevationDeg  float64  `json:"elevation_deg"`
	RelativeSpeed float64  `json:"relative_speed"`
	Strength      float64  `json:"strength"`
	RCS           *float64 `json:"rcs_m2"`
}

type latestJSON struct {
	SensorID      string       `json:"sensor_id"`
	FramesSeen    uint64       `json:"frames_seen"`
	FrameIndex    uint64       `json:"frame_index"`
	Peaks         int          `json:"peaks"`
	SpeedUnits    string       `json:"speed_units"`
	EgoSpeed      float64      `json:"ego_speed"`
	EgoConfident  bool         `json:"ego_confident"`
	EgoCandidates int          `json:"ego_candidates"`
	EgoInliers    int          `json:"ego_inliers"`
	Targets       []targetJSON `json:"targets"`
	Ghosts        []targetJSON `json:"ghosts"`
	Diagnostics   []string     `json:"diagnostics"`
	ElapsedMs     float64      `json:"elapsed_ms"`
}

func (ws *WebServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	res, frames := ws.snapshot()
	if res == nil {
		httputil.NotFound(w, "no frame processed yet")
		return
	}

	out := latestJSON{
		SensorID:      ws.sensorID,
		FramesSeen:    frames,
		FrameIndex:    res.FrameIndex,
		Peaks:         len(res.Peaks),
		SpeedUnits:    ws.units,
		EgoSpeed:      units.ConvertSpeed(res.Ego.Speed, ws.units),
		EgoConfident:  res.Ego.Confident,
		EgoCandidates: res.Ego.Candidates,
		EgoInliers:    res.Ego.Inliers,
		Targets:       toTargetJSON(res.Filtered, ws.units),
		Ghosts:        toTargetJSON(res.Ghosts, ws.units),
		Diagnostics:   make([]string, 0, len(res.Diagnostics)),
		ElapsedMs:     float64(res.Elapsed().Microseconds()) / 1000,
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.Error())
	}

	httputil.WriteJSON(w, http.StatusOK, out)
}

func (ws *WebServer) handleRangeDopplerPNG(w http.ResponseWriter, r *http.Request) {
	res, _ := ws.snapshot()
	if res == nil || res.CFAR == nil {
		httputil.NotFound(w, "no frame processed yet")
		return
	}
	p, err := RangeDopplerPlot(res.CFAR.NCI, fmt.Sprintf("Frame %d range-Doppler", res.FrameIndex))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writePNG(w, p, 10, 8)
}

// handleSpectrumPNG plots the MUSIC spectrum of one peak of the latest frame.
// Query params:
//   - peak (optional; default 0) index into the frame's peak list
func (ws *WebServer) handleSpectrumPNG(w http.ResponseWriter, r *http.Request) {
	if ws.est == nil {
		httputil.NotFound(w, "no estimator configured")
		return
	}
	res, _ := ws.snapshot()
	if res == nil {
		httputil.NotFound(w, "no frame processed yet")
		return
	}
	peak, ok := queryInt(r, "peak", 0)
	if !ok || peak < 0 || peak >= len(res.DOA) {
		httputil.BadRequest(w, fmt.Sprintf("peak must be in [0, %d)", len(res.DOA)))
		return
	}
	if res.DOA[peak].Spectrum == nil {
		httputil.NotFound(w, "peak has no spectrum")
		return
	}
	p, err := SpectrumPlot(ws.est, res.DOA[peak].Spectrum, fmt.Sprintf("Frame %d peak %d", res.FrameIndex, peak))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writePNG(w, p, 10, 5)
}

func writePNG(w http.ResponseWriter, p *plot.Plot, width, height float64) {
	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, "png")
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteRendered(w, "image/png", wt)
}

func nullableRCS(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
