// Package l2spectral owns Layer 2 (Spectra) of the radar data model.
//
// Responsibilities: tapering and transforming a time-domain frame into the
// range-Doppler-receiver domain, in place.
// Key types: Preprocessor.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2spectral
