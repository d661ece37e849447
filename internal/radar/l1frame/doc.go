// Package l1frame owns Layer 1 (Frames) of the radar data model.
//
// Responsibilities: the per-frame sample arena, its declared shape,
// shape validation, and the binary frame record used at the acquisition
// boundary.
// Key types: Frame, Shape, Pool, Reader, Writer.
//
// Dependency rule: L1 depends on nothing else under internal/radar.
package l1frame
