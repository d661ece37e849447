// Package l5doa owns Layer 5 (Angles) of the radar data model.
//
// Responsibilities: spatial covariance from virtual-array snapshots,
// optional sub-aperture smoothing, Hermitian eigendecomposition and the
// MUSIC pseudo-spectrum search over an azimuth × elevation grid.
// Key types: Estimator, Result, Angle, DegenerateApertureError.
//
// Dependency rule: L5 may depend on L1–L4, but never on L6.
package l5doa
