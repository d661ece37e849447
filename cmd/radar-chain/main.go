// Command radar-chain runs the FMCW processing chain over recorded frames or
// a synthetic demo scene, persisting and publishing the per-frame targets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/radarchain/internal/monitoring"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"github.com/banshee-data/radarchain/internal/version"
)

var (
	configPath  = flag.String("config", "", "Radar config file (.json/.yaml); built-in defaults when empty")
	inputPath   = flag.String("input", "", "Frame record file to replay; synthetic demo scene when empty")
	recordPath  = flag.String("record", "", "Write the synthetic frames to this record file")
	frames      = flag.Int("frames", 100, "Number of synthetic frames, or max frames to replay (0 = all)")
	snrDB       = flag.Float64("snr-db", 10, "Per-sample SNR of the weakest synthetic reflector")
	seed        = flag.Int64("seed", 1, "Synthetic noise seed")
	dbPath      = flag.String("db", "", "SQLite database for runs and targets; disabled when empty")
	description = flag.String("description", "", "Free-text run description stored with the run")
	grpcListen  = flag.String("grpc-listen", "", "gRPC target stream address, e.g. localhost:50061; disabled when empty")
	listen      = flag.String("listen", "", "Monitor HTTP address, e.g. :8081; disabled when empty")
	plotDir     = flag.String("plots", "", "Directory for range-Doppler and spectrum PNGs; disabled when empty")
	plotEvery   = flag.Int("plot-every", 10, "Plot every Nth frame")
	sensorID    = flag.String("sensor-id", "radar-01", "Sensor identifier for streamed frames")
	logLevel    = flag.String("log-level", "info", "Log verbosity: quiet, info or debug")
	speedUnits  = flag.String("speed-units", "mps", "Speed units for the monitor: mps, mph, kmph or kph")
	hold        = flag.Bool("hold", false, "Keep the monitor and gRPC servers up after the last frame until interrupted")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func optionsFromFlags() options {
	return options{
		configPath:  *configPath,
		inputPath:   *inputPath,
		recordPath:  *recordPath,
		frames:      *frames,
		snrDB:       *snrDB,
		seed:        *seed,
		dbPath:      *dbPath,
		description: *description,
		grpcListen:  *grpcListen,
		listen:      *listen,
		plotDir:     *plotDir,
		plotEvery:   *plotEvery,
		sensorID:    *sensorID,
		speedUnits:  *speedUnits,
		hold:        *hold,
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("radar-chain", version.String())
		return
	}
	if *inputPath != "" && *recordPath != "" {
		log.Fatal("-record only applies to synthetic runs")
	}
	pipeline.SetStreams(monitoring.StreamsForLevel(*logLevel, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("radar-chain %s", version.String())
	sum, err := run(ctx, optionsFromFlags())
	log.Printf("processed %d frames (%d aborted): %d targets, %d ghosts", sum.Frames, sum.Aborted, sum.Targets, sum.Ghosts)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("radar-chain: %v", err)
	}
}
