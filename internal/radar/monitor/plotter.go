package monitor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/l3cfar"
	"github.com/banshee-data/radarchain/internal/radar/l5doa"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// dbFloor keeps empty cells finite on the log scale.
const dbFloor = 1e-30

// powerGrid adapts an l3cfar.Map to plotter.GridXYZ in dB. Columns are
// Doppler bins, rows are range bins.
type powerGrid struct {
	m *l3cfar.Map
}

func (g powerGrid) Dims() (c, r int) { return g.m.DopplerBins, g.m.RangeBins }

func (g powerGrid) Z(c, r int) float64 { return 10 * math.Log10(math.Max(g.m.At(r, c), dbFloor)) }

func (g powerGrid) X(c int) float64 { return float64(c) }

func (g powerGrid) Y(r int) float64 { return float64(r) }

// RangeDopplerPlot builds a heat map of a non-coherently integrated map.
func RangeDopplerPlot(m *l3cfar.Map, title string) (*plot.Plot, error) {
	if m == nil || m.RangeBins < 2 || m.DopplerBins < 2 {
		return nil, fmt.Errorf("range-Doppler map too small to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Doppler bin"
	p.Y.Label.Text = "Range bin"

	hm := plotter.NewHeatMap(powerGrid{m: m}, palette.Heat(64, 1))
	hm.Rasterized = true
	p.Add(hm)
	return p, nil
}

// SpectrumPlot draws the MUSIC pseudo-spectrum along azimuth, one line per
// elevation row, in dB relative to the peak.
func SpectrumPlot(est *l5doa.Estimator, spectrum []float64, title string) (*plot.Plot, error) {
	grid := est.Grid()
	if len(spectrum) != len(grid) {
		return nil, fmt.Errorf("spectrum has %d points, grid has %d", len(spectrum), len(grid))
	}
	peak := 0.0
	for _, v := range spectrum {
		peak = math.Max(peak, v)
	}
	if peak <= 0 {
		return nil, fmt.Errorf("spectrum has no positive values")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Azimuth (deg)"
	p.Y.Label.Text = "Pseudo-spectrum (dB)"
	p.Add(plotter.NewGrid())

	azSteps, elSteps := est.GridShape()
	colors := palette.Rainbow(max(elSteps, 2), palette.Blue, palette.Red, 1, 1, 1).Colors()
	for e := range elSteps {
		pts := make(plotter.XYs, azSteps)
		for a := range azSteps {
			g := e*azSteps + a
			pts[a].X = grid[g].Azimuth * 180 / math.Pi
			pts[a].Y = 10 * math.Log10(math.Max(spectrum[g]/peak, dbFloor))
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to create spectrum line: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = colors[e]
		p.Add(line)
		if elSteps > 1 {
			p.Legend.Add(fmt.Sprintf("el %.0f°", grid[e*azSteps].Elevation*180/math.Pi), line)
		}
	}
	return p, nil
}

// Plotter writes range-Doppler and spectrum PNGs for every Nth frame.
type Plotter struct {
	outputDir string
	every     uint64
	est       *l5doa.Estimator
	written   atomic.Int64
}

// NewPlotter creates a plotter. every <= 1 plots every frame.
func NewPlotter(outputDir string, every int, est *l5doa.Estimator) *Plotter {
	return &Plotter{outputDir: outputDir, every: uint64(max(every, 1)), est: est}
}

// Start creates the output directory.
func (pl *Plotter) Start() error {
	if err := os.MkdirAll(pl.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	return nil
}

// Written returns the number of PNG files saved.
func (pl *Plotter) Written() int { return int(pl.written.Load()) }

// Name implements pipeline.Sink.
func (pl *Plotter) Name() string { return "plots" }

// Consume implements pipeline.Sink.
func (pl *Plotter) Consume(_ context.Context, res *pipeline.FrameResult) error {
	if res.FrameIndex%pl.every != 0 || res.CFAR == nil {
		return nil
	}
	rd, err := RangeDopplerPlot(res.CFAR.NCI, fmt.Sprintf("Frame %d range-Doppler", res.FrameIndex))
	if err != nil {
		return err
	}
	if err := pl.save(rd, fmt.Sprintf("frame_%06d_range_doppler.png", res.FrameIndex), 10, 8); err != nil {
		return err
	}

	if pl.est == nil {
		return nil
	}
	for i, d := range res.DOA {
		if d.Spectrum == nil {
			continue
		}
		sp, err := SpectrumPlot(pl.est, d.Spectrum, fmt.Sprintf("Frame %d peak %d", res.FrameIndex, i))
		if err != nil {
			return err
		}
		if err := pl.save(sp, fmt.Sprintf("frame_%06d_peak_%02d_spectrum.png", res.FrameIndex, i), 10, 5); err != nil {
			return err
		}
	}
	return nil
}

func (pl *Plotter) save(p *plot.Plot, name string, width, height float64) error {
	file := filepath.Join(pl.outputDir, name)
	if err := p.Save(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	pl.written.Add(1)
	monitoring.Logf("[monitor] wrote %s", file)
	return nil
}
