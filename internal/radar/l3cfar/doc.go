// Package l3cfar owns Layer 3 (Detections) of the radar data model.
//
// Responsibilities: non-coherent integration across receivers, Doppler
// folding, cell-averaging and ordered-statistic noise estimation,
// thresholding and local-maximum peak extraction.
// Key types: Map, Peak, Result, Detector.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4+.
package l3cfar
