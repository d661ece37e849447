package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical radar defaults file.
const DefaultConfigPath = "config/radar.defaults.json"

// SpeedOfLight in metres per second.
const SpeedOfLight = 299792458.0

// RadarConfig is the read-only description of the sensor and the tuning of
// every stage of the per-frame chain. It is loaded once per process.
// Omitted fields fall back to the defaults returned by the Get* methods, so
// partial files are safe.
type RadarConfig struct {
	// Frame shape
	Receivers *int `json:"receivers,omitempty" yaml:"receivers,omitempty"`
	Chirps    *int `json:"chirps,omitempty" yaml:"chirps,omitempty"`
	Samples   *int `json:"samples,omitempty" yaml:"samples,omitempty"`

	// MIMO geometry. Positions are integer multiples of half a wavelength,
	// given as [horizontal, vertical] pairs.
	NumTx           *int     `json:"num_tx,omitempty" yaml:"num_tx,omitempty"`
	TxPositions     [][2]int `json:"tx_positions,omitempty" yaml:"tx_positions,omitempty"`
	RxPositions     [][2]int `json:"rx_positions,omitempty" yaml:"rx_positions,omitempty"`
	GapFillPolicy   *string  `json:"gap_fill_policy,omitempty" yaml:"gap_fill_policy,omitempty"` // "interpolate" or "zero"
	TDMCompensation *bool    `json:"tdm_compensation,omitempty" yaml:"tdm_compensation,omitempty"`

	// Waveform
	CarrierFrequencyHz *float64 `json:"carrier_frequency_hz,omitempty" yaml:"carrier_frequency_hz,omitempty"`
	BandwidthHz        *float64 `json:"bandwidth_hz,omitempty" yaml:"bandwidth_hz,omitempty"`
	ChirpPeriodS       *float64 `json:"chirp_period_s,omitempty" yaml:"chirp_period_s,omitempty"`

	// Radar equation
	TransmittedPowerW *float64 `json:"transmitted_power_w,omitempty" yaml:"transmitted_power_w,omitempty"`
	TxGainDBi         *float64 `json:"tx_gain_dbi,omitempty" yaml:"tx_gain_dbi,omitempty"`
	RxGainDBi         *float64 `json:"rx_gain_dbi,omitempty" yaml:"rx_gain_dbi,omitempty"`

	// Spectral preprocessing
	RangeWindow   *string `json:"range_window,omitempty" yaml:"range_window,omitempty"`
	DopplerWindow *string `json:"doppler_window,omitempty" yaml:"doppler_window,omitempty"`

	// CFAR
	CFARMethod          *string  `json:"cfar_method,omitempty" yaml:"cfar_method,omitempty"` // "ca" or "os"
	CFARGuardRange      *int     `json:"cfar_guard_range,omitempty" yaml:"cfar_guard_range,omitempty"`
	CFARGuardDoppler    *int     `json:"cfar_guard_doppler,omitempty" yaml:"cfar_guard_doppler,omitempty"`
	CFARTrainingRange   *int     `json:"cfar_training_range,omitempty" yaml:"cfar_training_range,omitempty"`
	CFARTrainingDoppler *int     `json:"cfar_training_doppler,omitempty" yaml:"cfar_training_doppler,omitempty"`
	CFARFalseAlarmRate  *float64 `json:"cfar_false_alarm_rate,omitempty" yaml:"cfar_false_alarm_rate,omitempty"`
	CFARScaleFactor     *float64 `json:"cfar_scale_factor,omitempty" yaml:"cfar_scale_factor,omitempty"` // overrides the false alarm rate when set
	CFAROSRank          *float64 `json:"cfar_os_rank,omitempty" yaml:"cfar_os_rank,omitempty"`

	// DOA
	DOASources          *int     `json:"doa_sources,omitempty" yaml:"doa_sources,omitempty"`
	DOAAzimuthFOVDeg    *float64 `json:"doa_azimuth_fov_deg,omitempty" yaml:"doa_azimuth_fov_deg,omitempty"`
	DOAElevationFOVDeg  *float64 `json:"doa_elevation_fov_deg,omitempty" yaml:"doa_elevation_fov_deg,omitempty"`
	DOAGridStepDeg      *float64 `json:"doa_grid_step_deg,omitempty" yaml:"doa_grid_step_deg,omitempty"`
	DOAMinSeparationDeg *float64 `json:"doa_min_separation_deg,omitempty" yaml:"doa_min_separation_deg,omitempty"`
	DOASubarrayCols     *int     `json:"doa_subarray_cols,omitempty" yaml:"doa_subarray_cols,omitempty"`

	// Ego motion and ghost removal
	EgoMaxAzimuthDeg      *float64 `json:"ego_max_azimuth_deg,omitempty" yaml:"ego_max_azimuth_deg,omitempty"`
	EgoMinTargets         *int     `json:"ego_min_targets,omitempty" yaml:"ego_min_targets,omitempty"`
	EgoInlierToleranceMps *float64 `json:"ego_inlier_tolerance_mps,omitempty" yaml:"ego_inlier_tolerance_mps,omitempty"`
	GhostToleranceMps     *float64 `json:"ghost_tolerance_mps,omitempty" yaml:"ghost_tolerance_mps,omitempty"`

	// Runtime
	Workers           *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	FrameTimeout      *string `json:"frame_timeout,omitempty" yaml:"frame_timeout,omitempty"` // duration string like "500ms"
	MaxFramesInFlight *int    `json:"max_frames_in_flight,omitempty" yaml:"max_frames_in_flight,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultRadarConfig returns a RadarConfig with every field populated from
// the built-in defaults. Tests and tools that do not read a file start here.
func DefaultRadarConfig() *RadarConfig {
	c := EmptyRadarConfig()
	return &RadarConfig{
		Receivers:             ptrInt(c.GetReceivers()),
		Chirps:                ptrInt(c.GetChirps()),
		Samples:               ptrInt(c.GetSamples()),
		NumTx:                 ptrInt(c.GetNumTx()),
		TxPositions:           c.GetTxPositions(),
		RxPositions:           c.GetRxPositions(),
		GapFillPolicy:         ptrString(c.GetGapFillPolicy()),
		TDMCompensation:       ptrBool(c.GetTDMCompensation()),
		CarrierFrequencyHz:    ptrFloat64(c.GetCarrierFrequencyHz()),
		BandwidthHz:           ptrFloat64(c.GetBandwidthHz()),
		ChirpPeriodS:          ptrFloat64(c.GetChirpPeriodS()),
		TransmittedPowerW:     ptrFloat64(c.GetTransmittedPowerW()),
		TxGainDBi:             ptrFloat64(c.GetTxGainDBi()),
		RxGainDBi:             ptrFloat64(c.GetRxGainDBi()),
		RangeWindow:           ptrString(c.GetRangeWindow()),
		DopplerWindow:         ptrString(c.GetDopplerWindow()),
		CFARMethod:            ptrString(c.GetCFARMethod()),
		CFARGuardRange:        ptrInt(c.GetCFARGuardRange()),
		CFARGuardDoppler:      ptrInt(c.GetCFARGuardDoppler()),
		CFARTrainingRange:     ptrInt(c.GetCFARTrainingRange()),
		CFARTrainingDoppler:   ptrInt(c.GetCFARTrainingDoppler()),
		CFARFalseAlarmRate:    ptrFloat64(c.GetCFARFalseAlarmRate()),
		CFAROSRank:            ptrFloat64(c.GetCFAROSRank()),
		DOASources:            ptrInt(c.GetDOASources()),
		DOAAzimuthFOVDeg:      ptrFloat64(c.GetDOAAzimuthFOVDeg()),
		DOAElevationFOVDeg:    ptrFloat64(c.GetDOAElevationFOVDeg()),
		DOAGridStepDeg:        ptrFloat64(c.GetDOAGridStepDeg()),
		DOAMinSeparationDeg:   ptrFloat64(c.GetDOAMinSeparationDeg()),
		DOASubarrayCols:       ptrInt(c.GetDOASubarrayCols()),
		EgoMaxAzimuthDeg:      ptrFloat64(c.GetEgoMaxAzimuthDeg()),
		EgoMinTargets:         ptrInt(c.GetEgoMinTargets()),
		EgoInlierToleranceMps: ptrFloat64(c.GetEgoInlierToleranceMps()),
		GhostToleranceMps:     ptrFloat64(c.GetGhostToleranceMps()),
		Workers:               ptrInt(c.GetWorkers()),
		FrameTimeout:          ptrString(c.GetFrameTimeout().String()),
		MaxFramesInFlight:     ptrInt(c.GetMaxFramesInFlight()),
	}
}

// EmptyRadarConfig returns a RadarConfig with all fields unset.
func EmptyRadarConfig() *RadarConfig {
	return &RadarConfig{}
}

// LoadRadarConfig loads a RadarConfig from a .json, .yaml or .yml file.
// The file is validated for extension and size before parsing.
func LoadRadarConfig(path string) (*RadarConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRadarConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RadarConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/radar/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/radar/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadRadarConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are in range and mutually consistent.
func (c *RadarConfig) Validate() error {
	for name, v := range map[string]int{
		"receivers": c.GetReceivers(),
		"chirps":    c.GetChirps(),
		"samples":   c.GetSamples(),
		"num_tx":    c.GetNumTx(),
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if got := len(c.GetTxPositions()); got != c.GetNumTx() {
		return fmt.Errorf("tx_positions has %d entries, num_tx is %d", got, c.GetNumTx())
	}
	if want := c.GetNumTx() * len(c.GetRxPositions()); want != c.GetReceivers() {
		return fmt.Errorf("receivers must equal num_tx × len(rx_positions) = %d, got %d", want, c.GetReceivers())
	}

	switch c.GetGapFillPolicy() {
	case "interpolate", "zero":
	default:
		return fmt.Errorf("gap_fill_policy must be \"interpolate\" or \"zero\", got %q", c.GetGapFillPolicy())
	}

	for name, v := range map[string]float64{
		"carrier_frequency_hz": c.GetCarrierFrequencyHz(),
		"bandwidth_hz":         c.GetBandwidthHz(),
		"chirp_period_s":       c.GetChirpPeriodS(),
		"transmitted_power_w":  c.GetTransmittedPowerW(),
		"doa_grid_step_deg":    c.GetDOAGridStepDeg(),
		"ghost_tolerance_mps":  c.GetGhostToleranceMps(),
	} {
		if v <= 0 || math.IsNaN(v) {
			return fmt.Errorf("%s must be positive, got %g", name, v)
		}
	}

	for name, v := range map[string]string{
		"range_window":   c.GetRangeWindow(),
		"doppler_window": c.GetDopplerWindow(),
	} {
		switch v {
		case "hann", "hamming", "blackman", "rectangular":
		default:
			return fmt.Errorf("%s must be one of hann, hamming, blackman, rectangular; got %q", name, v)
		}
	}

	switch c.GetCFARMethod() {
	case "ca", "os":
	default:
		return fmt.Errorf("cfar_method must be \"ca\" or \"os\", got %q", c.GetCFARMethod())
	}
	if c.GetCFARGuardRange() < 0 || c.GetCFARGuardDoppler() < 0 {
		return fmt.Errorf("cfar guard widths must be non-negative")
	}
	if c.GetCFARTrainingRange() < 0 || c.GetCFARTrainingDoppler() < 0 {
		return fmt.Errorf("cfar training widths must be non-negative")
	}
	if c.GetCFARTrainingRange()+c.GetCFARTrainingDoppler() == 0 {
		return fmt.Errorf("cfar needs at least one training cell")
	}
	if pfa := c.GetCFARFalseAlarmRate(); pfa <= 0 || pfa >= 1 {
		return fmt.Errorf("cfar_false_alarm_rate must be in (0, 1), got %g", pfa)
	}
	if c.CFARScaleFactor != nil && *c.CFARScaleFactor < 1 {
		return fmt.Errorf("cfar_scale_factor must be >= 1, got %g", *c.CFARScaleFactor)
	}
	if r := c.GetCFAROSRank(); r <= 0 || r > 1 {
		return fmt.Errorf("cfar_os_rank must be in (0, 1], got %g", r)
	}

	if c.GetDOASources() < 1 {
		return fmt.Errorf("doa_sources must be at least 1, got %d", c.GetDOASources())
	}
	if fov := c.GetDOAAzimuthFOVDeg(); fov <= 0 || fov > 90 {
		return fmt.Errorf("doa_azimuth_fov_deg must be in (0, 90], got %g", fov)
	}
	if fov := c.GetDOAElevationFOVDeg(); fov < 0 || fov > 90 {
		return fmt.Errorf("doa_elevation_fov_deg must be in [0, 90], got %g", fov)
	}
	if c.GetDOAMinSeparationDeg() < 0 {
		return fmt.Errorf("doa_min_separation_deg must be non-negative")
	}
	if c.GetDOASubarrayCols() < 0 {
		return fmt.Errorf("doa_subarray_cols must be non-negative")
	}

	if az := c.GetEgoMaxAzimuthDeg(); az <= 0 || az >= 90 {
		return fmt.Errorf("ego_max_azimuth_deg must be in (0, 90), got %g", az)
	}
	if c.GetEgoMinTargets() < 1 {
		return fmt.Errorf("ego_min_targets must be at least 1, got %d", c.GetEgoMinTargets())
	}
	if c.GetEgoInlierToleranceMps() <= 0 {
		return fmt.Errorf("ego_inlier_tolerance_mps must be positive")
	}

	if c.GetWorkers() < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.GetWorkers())
	}
	if c.FrameTimeout != nil && *c.FrameTimeout != "" {
		if _, err := time.ParseDuration(*c.FrameTimeout); err != nil {
			return fmt.Errorf("invalid frame_timeout '%s': %w", *c.FrameTimeout, err)
		}
	}
	if c.GetMaxFramesInFlight() < 1 {
		return fmt.Errorf("max_frames_in_flight must be at least 1, got %d", c.GetMaxFramesInFlight())
	}

	return nil
}

// GetReceivers returns the number of receive channels in a frame.
func (c *RadarConfig) GetReceivers() int {
	if c.Receivers == nil {
		return 4
	}
	return *c.Receivers
}

// GetChirps returns the number of chirps per channel in a frame.
func (c *RadarConfig) GetChirps() int {
	if c.Chirps == nil {
		return 64
	}
	return *c.Chirps
}

// GetSamples returns the number of fast-time samples per chirp.
func (c *RadarConfig) GetSamples() int {
	if c.Samples == nil {
		return 256
	}
	return *c.Samples
}

// GetNumTx returns the number of time-multiplexed transmitters.
func (c *RadarConfig) GetNumTx() int {
	if c.NumTx == nil {
		return 1
	}
	return *c.NumTx
}

// GetTxPositions returns the transmitter phase centres in half-wavelength units.
func (c *RadarConfig) GetTxPositions() [][2]int {
	if len(c.TxPositions) == 0 {
		out := make([][2]int, c.GetNumTx())
		// Default: transmitters spaced by the full receive aperture so the
		// virtual array is a filled uniform line.
		step := len(c.GetRxPositions())
		for i := range out {
			out[i] = [2]int{i * step, 0}
		}
		return out
	}
	return c.TxPositions
}

// GetRxPositions returns the receiver phase centres in half-wavelength units.
func (c *RadarConfig) GetRxPositions() [][2]int {
	if len(c.RxPositions) == 0 {
		n := c.GetReceivers() / c.GetNumTx()
		out := make([][2]int, n)
		for i := range out {
			out[i] = [2]int{i, 0}
		}
		return out
	}
	return c.RxPositions
}

// GetGapFillPolicy returns the virtual-array gap fill policy.
func (c *RadarConfig) GetGapFillPolicy() string {
	if c.GapFillPolicy == nil || *c.GapFillPolicy == "" {
		return "interpolate"
	}
	return *c.GapFillPolicy
}

// GetTDMCompensation reports whether TDM Doppler phase compensation is applied.
func (c *RadarConfig) GetTDMCompensation() bool {
	if c.TDMCompensation == nil {
		return true
	}
	return *c.TDMCompensation
}

// GetCarrierFrequencyHz returns the carrier frequency.
func (c *RadarConfig) GetCarrierFrequencyHz() float64 {
	if c.CarrierFrequencyHz == nil {
		return 77e9
	}
	return *c.CarrierFrequencyHz
}

// GetBandwidthHz returns the swept chirp bandwidth.
func (c *RadarConfig) GetBandwidthHz() float64 {
	if c.BandwidthHz == nil {
		return 1e9
	}
	return *c.BandwidthHz
}

// GetChirpPeriodS returns the repetition interval between chirps of one channel.
func (c *RadarConfig) GetChirpPeriodS() float64 {
	if c.ChirpPeriodS == nil {
		return 50e-6
	}
	return *c.ChirpPeriodS
}

// GetTransmittedPowerW returns the transmitted power in watts.
func (c *RadarConfig) GetTransmittedPowerW() float64 {
	if c.TransmittedPowerW == nil {
		return 1.0
	}
	return *c.TransmittedPowerW
}

// GetTxGainDBi returns the transmit antenna gain in dBi.
func (c *RadarConfig) GetTxGainDBi() float64 {
	if c.TxGainDBi == nil {
		return 10.0
	}
	return *c.TxGainDBi
}

// GetRxGainDBi returns the receive antenna gain in dBi.
func (c *RadarConfig) GetRxGainDBi() float64 {
	if c.RxGainDBi == nil {
		return 10.0
	}
	return *c.RxGainDBi
}

// GetRangeWindow returns the fast-time window name.
func (c *RadarConfig) GetRangeWindow() string {
	if c.RangeWindow == nil || *c.RangeWindow == "" {
		return "hann"
	}
	return *c.RangeWindow
}

// GetDopplerWindow returns the slow-time window name.
func (c *RadarConfig) GetDopplerWindow() string {
	if c.DopplerWindow == nil || *c.DopplerWindow == "" {
		return "hann"
	}
	return *c.DopplerWindow
}

// GetCFARMethod returns "ca" (cell averaging) or "os" (ordered statistic).
func (c *RadarConfig) GetCFARMethod() string {
	if c.CFARMethod == nil || *c.CFARMethod == "" {
		return "ca"
	}
	return *c.CFARMethod
}

// GetCFARGuardRange returns the guard half-width along range.
func (c *RadarConfig) GetCFARGuardRange() int {
	if c.CFARGuardRange == nil {
		return 2
	}
	return *c.CFARGuardRange
}

// GetCFARGuardDoppler returns the guard half-width along Doppler.
func (c *RadarConfig) GetCFARGuardDoppler() int {
	if c.CFARGuardDoppler == nil {
		return 2
	}
	return *c.CFARGuardDoppler
}

// GetCFARTrainingRange returns the training half-width along range.
func (c *RadarConfig) GetCFARTrainingRange() int {
	if c.CFARTrainingRange == nil {
		return 4
	}
	return *c.CFARTrainingRange
}

// GetCFARTrainingDoppler returns the training half-width along Doppler.
func (c *RadarConfig) GetCFARTrainingDoppler() int {
	if c.CFARTrainingDoppler == nil {
		return 4
	}
	return *c.CFARTrainingDoppler
}

// GetCFARFalseAlarmRate returns the design probability of false alarm.
func (c *RadarConfig) GetCFARFalseAlarmRate() float64 {
	if c.CFARFalseAlarmRate == nil {
		return 1e-6
	}
	return *c.CFARFalseAlarmRate
}

// GetCFARScaleFactor returns the explicit threshold multiplier, or 0 when the
// multiplier should be derived from the false alarm rate.
func (c *RadarConfig) GetCFARScaleFactor() float64 {
	if c.CFARScaleFactor == nil {
		return 0
	}
	return *c.CFARScaleFactor
}

// GetCFAROSRank returns the ordered-statistic rank as a fraction of the training set.
func (c *RadarConfig) GetCFAROSRank() float64 {
	if c.CFAROSRank == nil {
		return 0.75
	}
	return *c.CFAROSRank
}

// GetDOASources returns the number of angles requested per peak.
func (c *RadarConfig) GetDOASources() int {
	if c.DOASources == nil {
		return 1
	}
	return *c.DOASources
}

// GetDOAAzimuthFOVDeg returns the half field of view searched in azimuth.
func (c *RadarConfig) GetDOAAzimuthFOVDeg() float64 {
	if c.DOAAzimuthFOVDeg == nil {
		return 60
	}
	return *c.DOAAzimuthFOVDeg
}

// GetDOAElevationFOVDeg returns the half field of view searched in elevation.
// It is only used when the virtual array spans more than one row.
func (c *RadarConfig) GetDOAElevationFOVDeg() float64 {
	if c.DOAElevationFOVDeg == nil {
		return 20
	}
	return *c.DOAElevationFOVDeg
}

// GetDOAGridStepDeg returns the angular grid spacing.
func (c *RadarConfig) GetDOAGridStepDeg() float64 {
	if c.DOAGridStepDeg == nil {
		return 1
	}
	return *c.DOAGridStepDeg
}

// GetDOAMinSeparationDeg returns the minimum spacing between selected angles.
func (c *RadarConfig) GetDOAMinSeparationDeg() float64 {
	if c.DOAMinSeparationDeg == nil {
		return 4
	}
	return *c.DOAMinSeparationDeg
}

// GetDOASubarrayCols returns the spatial smoothing sub-aperture width. Zero
// disables smoothing.
func (c *RadarConfig) GetDOASubarrayCols() int {
	if c.DOASubarrayCols == nil {
		return 0
	}
	return *c.DOASubarrayCols
}

// GetEgoMaxAzimuthDeg returns the azimuth cutoff for ego-motion candidates.
func (c *RadarConfig) GetEgoMaxAzimuthDeg() float64 {
	if c.EgoMaxAzimuthDeg == nil {
		return 60
	}
	return *c.EgoMaxAzimuthDeg
}

// GetEgoMinTargets returns the number of candidates needed for a confident fit.
func (c *RadarConfig) GetEgoMinTargets() int {
	if c.EgoMinTargets == nil {
		return 2
	}
	return *c.EgoMinTargets
}

// GetEgoInlierToleranceMps returns the residual bound for the least-squares refit.
func (c *RadarConfig) GetEgoInlierToleranceMps() float64 {
	if c.EgoInlierToleranceMps == nil {
		return 0.5
	}
	return *c.EgoInlierToleranceMps
}

// GetGhostToleranceMps returns the speed residual above which a target is a ghost.
func (c *RadarConfig) GetGhostToleranceMps() float64 {
	if c.GhostToleranceMps == nil {
		return 1.0
	}
	return *c.GhostToleranceMps
}

// GetWorkers returns the worker pool size. Zero means GOMAXPROCS.
func (c *RadarConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetFrameTimeout parses and returns the per-frame deadline. Zero disables it.
func (c *RadarConfig) GetFrameTimeout() time.Duration {
	if c.FrameTimeout == nil || *c.FrameTimeout == "" {
		return 500 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FrameTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxFramesInFlight returns how many frames may be processed concurrently.
func (c *RadarConfig) GetMaxFramesInFlight() int {
	if c.MaxFramesInFlight == nil {
		return 2
	}
	return *c.MaxFramesInFlight
}

// Wavelength returns the carrier wavelength in metres.
func (c *RadarConfig) Wavelength() float64 {
	return SpeedOfLight / c.GetCarrierFrequencyHz()
}

// RangeResolution returns the metres covered by one range bin.
func (c *RadarConfig) RangeResolution() float64 {
	return SpeedOfLight / (2 * c.GetBandwidthHz())
}

// VelocityResolution returns the metres per second covered by one Doppler bin.
func (c *RadarConfig) VelocityResolution() float64 {
	return c.Wavelength() / (2 * float64(c.GetChirps()) * c.GetChirpPeriodS())
}

// TxGainLinear returns the transmit gain as a power ratio.
func (c *RadarConfig) TxGainLinear() float64 {
	return math.Pow(10, c.GetTxGainDBi()/10)
}

// RxGainLinear returns the receive gain as a power ratio.
func (c *RadarConfig) RxGainLinear() float64 {
	return math.Pow(10, c.GetRxGainDBi()/10)
}
