// Package depth owns the depth-frame data model and the frame gate.
//
// Responsibilities: the row-major DepthFrame grid, the calibrated
// distance lookup, and the Source contract the pipeline polls once per
// tick. Sensor acquisition (the camera driver) is not implemented here; a
// driver delivers frames into a Mailbox from its own callback.
// Key types: Frame, Source, Mailbox.
//
// Dependency rule: depth imports nothing from the pipeline layers.
package depth
