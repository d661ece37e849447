// Package pipeline runs the per-frame radar chain from the spectral
// preprocessor through the ghost filter.
//
// This package is the composition root: it imports the layer packages
// (l1frame, l2spectral, l3cfar, l4array, l5doa, l6targets) and none of
// them import pipeline/. Result sinks (storage, gRPC, web monitor) plug
// in through the Sink interface.
package pipeline
