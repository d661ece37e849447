package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/l1frame"
	"github.com/banshee-data/radarchain/internal/radar/monitor"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"github.com/banshee-data/radarchain/internal/radar/storage/sqlite"
	"github.com/banshee-data/radarchain/internal/radar/synthetic"
	"github.com/banshee-data/radarchain/internal/radar/visualiser"
	"github.com/banshee-data/radarchain/internal/units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

type options struct {
	configPath  string
	inputPath   string
	recordPath  string
	frames      int
	snrDB       float64
	seed        int64
	dbPath      string
	description string
	grpcListen  string
	listen      string
	plotDir     string
	plotEvery   int
	sensorID    string
	speedUnits  string
	hold        bool
}

func loadConfig(path string) (*config.RadarConfig, error) {
	if path == "" {
		return config.DefaultRadarConfig(), nil
	}
	return config.LoadRadarConfig(path)
}

// run wires the processor to its frame source and sinks and blocks until the
// source is drained or ctx ends.
func run(ctx context.Context, o options) (pipeline.Summary, error) {
	var sum pipeline.Summary

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return sum, err
	}
	speed := units.MPS
	if o.speedUnits != "" {
		if speed, err = units.Parse(o.speedUnits); err != nil {
			return sum, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	proc, err := pipeline.NewProcessor(cfg, monitoring.NewMetrics(reg))
	if err != nil {
		return sum, err
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	var sinks []pipeline.Sink

	var store *sqlite.Store
	var runRec *sqlite.Run
	if o.dbPath != "" {
		store, err = sqlite.Open(o.dbPath)
		if err != nil {
			return sum, err
		}
		defer store.Close()
		runRec, err = store.StartRun(ctx, cfg, o.description)
		if err != nil {
			return sum, err
		}
		monitoring.Logf("started run %s", runRec.RunID)
		sinks = append(sinks, store.Sink(runRec.RunID))
	}

	if o.grpcListen != "" {
		vc := visualiser.DefaultConfig()
		vc.ListenAddr = o.grpcListen
		vc.SensorID = o.sensorID
		pub := visualiser.NewPublisher(vc)
		if err := pub.Start(); err != nil {
			return sum, err
		}
		defer pub.Stop()
		sinks = append(sinks, pub)
	}

	if o.listen != "" {
		wc := monitor.WebServerConfig{
			Address:   o.listen,
			SensorID:  o.sensorID,
			Gatherer:  reg,
			Estimator: proc.Estimator(),
			Units:     speed,
		}
		if store != nil {
			wc.Admin = store
		}
		ws := monitor.NewWebServer(wc)
		sinks = append(sinks, ws)
		g.Go(func() error { return ws.Start(serveCtx) })
	}

	if o.plotDir != "" {
		pl := monitor.NewPlotter(o.plotDir, o.plotEvery, proc.Estimator())
		if err := pl.Start(); err != nil {
			return sum, err
		}
		sinks = append(sinks, pl)
	}

	pool := l1frame.NewPool(proc.Shape())
	in := make(chan *l1frame.Frame)
	g.Go(func() error {
		defer close(in)
		if o.inputPath != "" {
			return replay(gctx, in, pool, o)
		}
		return generate(gctx, in, pool, cfg, o)
	})

	g.Go(func() error {
		defer stopServing()
		var err error
		sum, err = proc.Run(gctx, in, pool.Put, sinks...)
		if err == nil && o.hold {
			monitoring.Logf("all frames processed; holding servers until interrupted")
			<-gctx.Done()
		}
		return err
	})

	err = g.Wait()
	if store != nil {
		if ferr := store.FinishRun(context.Background(), runRec.RunID, sum.Frames, sum.Aborted); ferr != nil {
			err = errors.Join(err, ferr)
		}
	}
	return sum, err
}

func send(ctx context.Context, in chan<- *l1frame.Frame, pool *l1frame.Pool, f *l1frame.Frame) bool {
	select {
	case in <- f:
		return true
	case <-ctx.Done():
		pool.Put(f)
		return false
	}
}

// generate renders the demo scene with noise o.snrDB below the weakest
// reflector and optionally records every frame.
func generate(ctx context.Context, in chan<- *l1frame.Frame, pool *l1frame.Pool, cfg *config.RadarConfig, o options) error {
	scene := synthetic.DemoScene(cfg)
	probe := synthetic.NewGenerator(cfg, 0, 0)
	weakest := math.Inf(1)
	for _, r := range scene {
		weakest = math.Min(weakest, probe.Amplitude(r))
	}
	gen := synthetic.NewGenerator(cfg, weakest*math.Pow(10, -o.snrDB/20), o.seed)
	monitoring.Logf("synthetic scene: %d reflectors, ego %.2f m/s", len(scene), synthetic.DemoEgoSpeed(cfg))

	var rec *l1frame.Writer
	if o.recordPath != "" {
		file, err := os.Create(o.recordPath)
		if err != nil {
			return fmt.Errorf("failed to create record file: %w", err)
		}
		defer file.Close()
		rec = l1frame.NewWriter(file)
		defer rec.Flush()
	}

	for i := range o.frames {
		f := pool.Get(uint64(i))
		gen.Render(f, scene)
		if rec != nil {
			if err := rec.Write(f); err != nil {
				pool.Put(f)
				return err
			}
		}
		if !send(ctx, in, pool, f) {
			return nil
		}
	}
	if rec != nil {
		return rec.Flush()
	}
	return nil
}

// replay streams frames from a record file into pooled arenas.
func replay(ctx context.Context, in chan<- *l1frame.Frame, pool *l1frame.Pool, o options) error {
	file, err := os.Open(o.inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	r := l1frame.NewReader(file)
	for i := 0; o.frames <= 0 || i < o.frames; i++ {
		dst := pool.Get(uint64(i))
		f, err := r.NextInto(dst)
		if f != dst {
			pool.Put(dst)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", i, err)
		}
		if !send(ctx, in, pool, f) {
			return nil
		}
	}
	return nil
}
