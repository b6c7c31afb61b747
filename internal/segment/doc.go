// Package segment owns foreground segmentation of depth frames.
//
// Responsibilities: binarizing a frame against a threshold, extracting
// 8-connected foreground regions, and describing each qualifying region
// as a Blob (centroid, bounding box, boundary trace, pixel area).
// Key types: Segmenter, Params, Blob.
//
// Dependency rule: segment may depend on depth, never on feature,
// transform, osc or pipeline.
package segment
