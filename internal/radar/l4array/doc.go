// Package l4array owns Layer 4 (Virtual array) of the radar data model.
//
// Responsibilities: mapping MIMO transmitter/receiver phase centres onto a
// half-wavelength virtual lattice, TDM Doppler phase compensation, gap
// filling, and gathering one spatial snapshot per detected peak.
// Key types: Geometry, Lattice, Synthesizer.
//
// Dependency rule: L4 may depend on L1–L3, but never on L5+.
package l4array
