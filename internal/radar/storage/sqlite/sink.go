package sqlite

import (
	"context"

	"github.com/banshee-data/radarchain/internal/radar/pipeline"
)

// Sink returns a pipeline sink that persists every frame under runID.
func (s *Store) Sink(runID string) pipeline.Sink {
	return pipeline.SinkFunc{
		Label: "sqlite",
		Fn: func(ctx context.Context, res *pipeline.FrameResult) error {
			return s.PersistFrame(ctx, runID, res)
		},
	}
}
