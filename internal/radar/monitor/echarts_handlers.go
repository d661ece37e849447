package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/banshee-data/radarchain/internal/httputil"
	"github.com/banshee-data/radarchain/internal/radar/l6targets"
	"github.com/banshee-data/radarchain/internal/units"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTargetsChart renders the latest frame's targets in the sensor's x/y
// plane, kept targets and ghosts as separate series.
func (ws *WebServer) handleTargetsChart(w http.ResponseWriter, r *http.Request) {
	res, _ := ws.snapshot()
	if res == nil {
		httputil.NotFound(w, "no frame processed yet")
		return
	}

	kept := scatterPoints(res.Filtered, ws.units)
	ghosts := scatterPoints(res.Ghosts, ws.units)
	pad := 10.0
	for _, t := range append(append([]l6targets.Target(nil), res.Filtered...), res.Ghosts...) {
		pad = math.Max(pad, math.Ceil(math.Max(math.Abs(t.X), math.Abs(t.Y))*1.1))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Radar targets", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Frame %d", res.FrameIndex), Subtitle: fmt.Sprintf("ego %.2f %s, %d kept, %d ghosts", units.ConvertSpeed(res.Ego.Speed, ws.units), units.Label(ws.units), len(kept), len(ghosts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("targets", kept, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#4fc3f7"}))
	scatter.AddSeries("ghosts", ghosts, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff7043"}))

	ws.renderPage(w, scatter)
}

// handleEgoChart renders the recent ego speed estimates.
func (ws *WebServer) handleEgoChart(w http.ResponseWriter, r *http.Request) {
	ws.mu.RLock()
	samples := append([]egoSample(nil), ws.ego...)
	ws.mu.RUnlock()
	if len(samples) == 0 {
		httputil.NotFound(w, "no frame processed yet")
		return
	}

	x := make([]string, len(samples))
	speed := make([]opts.LineData, len(samples))
	confident := make([]opts.LineData, len(samples))
	for i, s := range samples {
		x[i] = strconv.FormatUint(s.FrameIndex, 10)
		speed[i] = opts.LineData{Value: units.ConvertSpeed(s.Speed, ws.units)}
		if s.Confident {
			confident[i] = opts.LineData{Value: 1}
		} else {
			confident[i] = opts.LineData{Value: 0}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Ego speed", Width: "100%", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Ego speed", Subtitle: ws.sensorID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: units.Label(ws.units)}),
	)
	line.SetXAxis(x).
		AddSeries("speed", speed).
		AddSeries("confident", confident)

	ws.renderPage(w, line)
}

func (ws *WebServer) renderPage(w http.ResponseWriter, chart components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(chart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteRendered(w, "text/html; charset=utf-8", &buf)
}

func scatterPoints(targets []l6targets.Target, speedUnits string) []opts.ScatterData {
	pts := make([]opts.ScatterData, 0, len(targets))
	for _, t := range targets {
		v := units.ConvertSpeed(t.RelativeSpeed, speedUnits)
		pts = append(pts, opts.ScatterData{
			Name:  fmt.Sprintf("r=%.1fm v=%.2f%s", t.Range, v, units.Label(speedUnits)),
			Value: []interface{}{t.X, t.Y, v},
		})
	}
	return pts
}

func toTargetJSON(targets []l6targets.Target, speedUnits string) []targetJSON {
	out := make([]targetJSON, 0, len(targets))
	for _, t := range targets {
		out = append(out, targetJSON{
			RangeBin:      t.RangeBin,
			DopplerBin:    t.DopplerBin,
			X:             t.X,
			Y:             t.Y,
			Z:             t.Z,
			Range:         t.Range,
			AzimuthDeg:    t.Azimuth * 180 / math.Pi,
			ElevationDeg:  t.Elevation * 180 / math.Pi,
			RelativeSpeed: units.ConvertSpeed(t.RelativeSpeed, speedUnits),
			Strength:      t.Strength,
			RCS:           nullableRCS(t.RCS),
		})
	}
	return out
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
