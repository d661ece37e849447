package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/l2spectral"
	"github.com/banshee-data/radarchain/internal/radar/l3cfar"
	"github.com/banshee-data/radarchain/internal/radar/l4array"
	"github.com/banshee-data/radarchain/internal/radar/l5doa"
	"github.com/banshee-data/radarchain/internal/radar/l6targets"
	"github.com/banshee-data/radarchain/internal/radar/workers"
)

// Stage names used in timings, logs and metrics.
const (
	StageSpectral = "spectral"
	StageCFAR     = "cfar"
	StageArray    = "array"
	StageDOA      = "doa"
	StageTargets  = "targets"
	StageRCS      = "rcs"
	StageEgo      = "ego"
	StageGhost    = "ghost"
)

// StageTiming is the wall time of one stage of one frame.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// FrameResult is everything the chain produced for one frame. Targets holds
// the built targets before ghost filtering; Filtered is the final list.
type FrameResult struct {
	FrameIndex  uint64
	FrameBytes  int
	CFAR        *l3cfar.Result
	Peaks       []l3cfar.Peak
	Snapshots   [][]complex128
	DOA         []l5doa.Result
	Targets     []l6targets.Target
	Ego         l6targets.EgoEstimate
	Filtered    []l6targets.Target
	Ghosts      []l6targets.Target
	Diagnostics []error
	Timings     []StageTiming
}

// Elapsed returns the summed stage time.
func (r *FrameResult) Elapsed() time.Duration {
	var total time.Duration
	for _, t := range r.Timings {
		total += t.Duration
	}
	return total
}

// Processor owns the read-only stage objects built from one configuration.
// A Processor may run several frames concurrently; each call to Process
// works only on the frame it is given.
type Processor struct {
	shape    l1frame.Shape
	spectral *l2spectral.Preprocessor
	cfar     *l3cfar.Detector
	array    *l4array.Synthesizer
	doa      *l5doa.Estimator
	builder  *l6targets.Builder
	link     l6targets.RadarEquation
	ego      l6targets.EgoConfig
	ghosts   l6targets.GhostFilter

	timeout     time.Duration
	maxInFlight int
	metrics     *monitoring.Metrics
}

// NewProcessor validates cfg and builds every stage. metrics may be nil.
func NewProcessor(cfg *config.RadarConfig, metrics *monitoring.Metrics) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid radar config: %w", err)
	}
	pool := workers.New(cfg.GetWorkers())
	shape := l1frame.Shape{
		Receivers: cfg.GetReceivers(),
		Chirps:    cfg.GetChirps(),
		Samples:   cfg.GetSamples(),
	}

	spectral, err := l2spectral.New(l2spectral.Config{
		Shape:         shape,
		RangeWindow:   cfg.GetRangeWindow(),
		DopplerWindow: cfg.GetDopplerWindow(),
	}, pool)
	if err != nil {
		return nil, fmt.Errorf("spectral preprocessor: %w", err)
	}

	detector, err := l3cfar.New(l3cfar.Config{
		Method:          cfg.GetCFARMethod(),
		GuardRange:      cfg.GetCFARGuardRange(),
		GuardDoppler:    cfg.GetCFARGuardDoppler(),
		TrainingRange:   cfg.GetCFARTrainingRange(),
		TrainingDoppler: cfg.GetCFARTrainingDoppler(),
		FalseAlarmRate:  cfg.GetCFARFalseAlarmRate(),
		ScaleFactor:     cfg.GetCFARScaleFactor(),
		OSRank:          cfg.GetCFAROSRank(),
	}, pool)
	if err != nil {
		return nil, fmt.Errorf("cfar detector: %w", err)
	}

	array, err := l4array.New(l4array.Config{
		Geometry:        l4array.Geometry{Tx: cfg.GetTxPositions(), Rx: cfg.GetRxPositions()},
		Chirps:          shape.Chirps,
		GapFill:         cfg.GetGapFillPolicy(),
		TDMCompensation: cfg.GetTDMCompensation(),
	}, pool)
	if err != nil {
		return nil, fmt.Errorf("array synthesizer: %w", err)
	}

	doa, err := l5doa.New(l5doa.Config{
		Lattice:          array.Lattice(),
		Sources:          cfg.GetDOASources(),
		AzimuthFOVDeg:    cfg.GetDOAAzimuthFOVDeg(),
		ElevationFOVDeg:  cfg.GetDOAElevationFOVDeg(),
		GridStepDeg:      cfg.GetDOAGridStepDeg(),
		MinSeparationDeg: cfg.GetDOAMinSeparationDeg(),
		SubarrayCols:     cfg.GetDOASubarrayCols(),
	}, pool)
	if err != nil {
		return nil, fmt.Errorf("doa estimator: %w", err)
	}

	rg, dg := spectral.RangeGain(), spectral.DopplerGain()
	builder := l6targets.NewBuilder(l6targets.BuilderConfig{
		RangeResolution:    cfg.RangeResolution(),
		VelocityResolution: cfg.VelocityResolution(),
		ZeroDopplerBin:     spectral.ZeroDopplerBin(),
		ProcessingGain:     float64(shape.Receivers) * rg * rg * dg * dg,
	})

	return &Processor{
		shape:    shape,
		spectral: spectral,
		cfar:     detector,
		array:    array,
		doa:      doa,
		builder:  builder,
		link: l6targets.RadarEquation{
			TransmittedPower: cfg.GetTransmittedPowerW(),
			TxGain:           cfg.TxGainLinear(),
			RxGain:           cfg.RxGainLinear(),
			Wavelength:       cfg.Wavelength(),
		},
		ego: l6targets.EgoConfig{
			MaxAzimuth:      cfg.GetEgoMaxAzimuthDeg() * math.Pi / 180,
			MinTargets:      cfg.GetEgoMinTargets(),
			InlierTolerance: cfg.GetEgoInlierToleranceMps(),
		},
		ghosts:      l6targets.GhostFilter{Tolerance: cfg.GetGhostToleranceMps()},
		timeout:     cfg.GetFrameTimeout(),
		maxInFlight: cfg.GetMaxFramesInFlight(),
		metrics:     metrics,
	}, nil
}

// Shape returns the frame shape the processor accepts.
func (p *Processor) Shape() l1frame.Shape { return p.shape }

// Estimator exposes the DOA search grid for plotting.
func (p *Processor) Estimator() *l5doa.Estimator { return p.doa }

// Lattice returns the virtual array used by the synthesizer.
func (p *Processor) Lattice() *l4array.Lattice { return p.array.Lattice() }

// Process runs every stage on f, transforming it in place. A shape
// mismatch or an expired per-frame deadline aborts the frame and returns
// a nil result; every other condition is reported in Diagnostics.
func (p *Processor) Process(ctx context.Context, f *l1frame.Frame) (*FrameResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := &FrameResult{FrameIndex: f.Index, FrameBytes: f.SizeBytes()}
	run := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("frame %d before %s: %w", f.Index, name, err)
		}
		start := time.Now()
		err := fn()
		d := time.Since(start)
		res.Timings = append(res.Timings, StageTiming{Stage: name, Duration: d})
		p.metrics.ObserveStage(name, d)
		tracef("frame %d %s took %v", f.Index, name, d)
		if err != nil {
			return fmt.Errorf("frame %d %s: %w", f.Index, name, err)
		}
		return nil
	}

	err := run(StageSpectral, func() error {
		return p.spectral.Process(ctx, f)
	})
	if err == nil {
		err = run(StageCFAR, func() error {
			r, err := p.cfar.Detect(ctx, f)
			if err != nil {
				return err
			}
			res.CFAR, res.Peaks = r, r.Peaks
			return nil
		})
	}
	if err == nil {
		err = run(StageArray, func() error {
			snaps, err := p.array.Synthesize(ctx, f, res.Peaks)
			res.Snapshots = snaps
			return err
		})
	}
	if err == nil {
		err = run(StageDOA, func() error {
			doa, err := p.doa.Estimate(ctx, res.Snapshots)
			if err != nil {
				return err
			}
			res.DOA = doa
			for _, r := range doa {
				if r.Err != nil {
					p.diagnose(res, "degenerate_aperture", r.Err)
				}
			}
			return nil
		})
	}
	if err == nil {
		err = run(StageTargets, func() error {
			res.Targets = p.builder.Build(res.Peaks, res.DOA, res.CFAR.NCI)
			return nil
		})
	}
	if err == nil {
		err = run(StageRCS, func() error {
			for _, e := range p.link.Estimate(res.Targets) {
				p.diagnose(res, "invalid_range", e)
			}
			return nil
		})
	}
	if err == nil {
		err = run(StageEgo, func() error {
			ego, e := l6targets.EstimateEgo(res.Targets, p.ego)
			res.Ego = ego
			if e != nil {
				p.diagnose(res, "low_confidence_ego", e)
			}
			return nil
		})
	}
	if err == nil {
		err = run(StageGhost, func() error {
			res.Filtered, res.Ghosts = p.ghosts.Filter(res.Targets, res.Ego)
			return nil
		})
	}
	if err != nil {
		reason := abortReason(err)
		p.metrics.FrameAborted(reason)
		opsf("frame %d aborted (%s): %v", f.Index, reason, err)
		return nil, err
	}

	p.metrics.ObserveFrame(len(res.Peaks), len(res.Filtered), len(res.Ghosts), res.Ego.Speed, res.Ego.Confident)
	diagf("frame %d: %d peaks, %d targets, %d ghosts, ego %.2f m/s (confident=%t, %d/%d inliers), %d diagnostics, %v",
		f.Index, len(res.Peaks), len(res.Filtered), len(res.Ghosts), res.Ego.Speed, res.Ego.Confident,
		res.Ego.Inliers, res.Ego.Candidates, len(res.Diagnostics), res.Elapsed())
	return res, nil
}

func (p *Processor) diagnose(res *FrameResult, kind string, err error) {
	res.Diagnostics = append(res.Diagnostics, err)
	p.metrics.Diagnostic(kind)
}

// abortReason labels a fatal frame error for metrics.
func abortReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, l1frame.ErrConfigMismatch):
		return "config"
	default:
		return "error"
	}
}
