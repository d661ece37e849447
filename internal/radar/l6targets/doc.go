// Package l6targets owns Layer 6 (Targets) of the radar data model.
//
// Responsibilities: fusing peaks and angles into Cartesian target records,
// radar-equation RCS inversion, ego-speed estimation from the static scene,
// and rejection of targets that violate the rigid-scene motion model.
// Key types: Target, Builder, RadarEquation, EgoEstimate, GhostFilter.
//
// Dependency rule: L6 may depend on L1–L5.
package l6targets
