package visualiser

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/radarchain/internal/radar/l6targets"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
	"google.golang.org/protobuf/types/known/structpb"
)

// TargetFrame is the canonical per-frame message streamed to clients.
type TargetFrame struct {
	FrameIndex     uint64
	TimestampNanos int64
	SensorID       string
	EgoSpeed       float64
	EgoConfident   bool
	Targets        []l6targets.Target
	Ghosts         []l6targets.Target
}

// FromResult builds a TargetFrame from a pipeline result stamped at now.
func FromResult(res *pipeline.FrameResult, sensorID string, now time.Time) *TargetFrame {
	return &TargetFrame{
		FrameIndex:     res.FrameIndex,
		TimestampNanos: now.UnixNano(),
		SensorID:       sensorID,
		EgoSpeed:       res.Ego.Speed,
		EgoConfident:   res.Ego.Confident,
		Targets:        res.Filtered,
		Ghosts:         res.Ghosts,
	}
}

// frameToProto encodes f as a protobuf Struct. Ghosts are included only
// when requested.
func frameToProto(f *TargetFrame, includeGhosts bool) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"frame_index":   float64(f.FrameIndex),
		"timestamp_ns":  float64(f.TimestampNanos),
		"sensor_id":     f.SensorID,
		"ego_speed_mps": f.EgoSpeed,
		"ego_confident": f.EgoConfident,
		"targets":       targetsToList(f.Targets),
	}
	if includeGhosts {
		m["ghosts"] = targetsToList(f.Ghosts)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.FrameIndex, err)
	}
	return s, nil
}

func targetsToList(ts []l6targets.Target) []interface{} {
	out := make([]interface{}, len(ts))
	for i, t := range ts {
		var rcs interface{}
		if !math.IsNaN(t.RCS) && !math.IsInf(t.RCS, 0) {
			rcs = t.RCS
		}
		out[i] = map[string]interface{}{
			"peak":          float64(t.Peak),
			"range_bin":     float64(t.RangeBin),
			"doppler_bin":   float64(t.DopplerBin),
			"x":             t.X,
			"y":             t.Y,
			"z":             t.Z,
			"range_m":       t.Range,
			"azimuth_rad":   t.Azimuth,
			"elevation_rad": t.Elevation,
			"strength":      t.Strength,
			"speed_mps":     t.RelativeSpeed,
			"rcs_m2":        rcs,
		}
	}
	return out
}

// FrameFromProto decodes a streamed Struct back into a TargetFrame.
// Missing RCS values decode as NaN.
func FrameFromProto(s *structpb.Struct) (*TargetFrame, error) {
	fields := s.GetFields()
	sensor, ok := fields["sensor_id"]
	if !ok {
		return nil, fmt.Errorf("frame message has no sensor_id")
	}
	f := &TargetFrame{
		FrameIndex:     uint64(fields["frame_index"].GetNumberValue()),
		TimestampNanos: int64(fields["timestamp_ns"].GetNumberValue()),
		SensorID:       sensor.GetStringValue(),
		EgoSpeed:       fields["ego_speed_mps"].GetNumberValue(),
		EgoConfident:   fields["ego_confident"].GetBoolValue(),
	}
	var err error
	if f.Targets, err = listToTargets(fields["targets"]); err != nil {
		return nil, err
	}
	if f.Ghosts, err = listToTargets(fields["ghosts"]); err != nil {
		return nil, err
	}
	return f, nil
}

func listToTargets(v *structpb.Value) ([]l6targets.Target, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, nil
	}
	out := make([]l6targets.Target, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		st := item.GetStructValue()
		if st == nil {
			return nil, fmt.Errorf("target %d is not an object", i)
		}
		f := st.GetFields()
		num := func(k string) float64 { return f[k].GetNumberValue() }
		t := l6targets.Target{
			Peak:          int(num("peak")),
			RangeBin:      int(num("range_bin")),
			DopplerBin:    int(num("doppler_bin")),
			X:             num("x"),
			Y:             num("y"),
			Z:             num("z"),
			Range:         num("range_m"),
			Azimuth:       num("azimuth_rad"),
			Elevation:     num("elevation_rad"),
			Strength:      num("strength"),
			RelativeSpeed: num("speed_mps"),
			RCS:           math.NaN(),
		}
		if r, ok := f["rcs_m2"].GetKind().(*structpb.Value_NumberValue); ok {
			t.RCS = r.NumberValue
		}
		out = append(out, t)
	}
	return out, nil
}
