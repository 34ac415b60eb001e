// Package landcover defines the land-cover label set and the adapter around
// trained tile classifiers.
//
// A Model maps a Batch of equally sized RGB tiles to one probability row
// per tile. The Classifier wraps a Model together with a LabelSet and
// rejects any output that is not a valid distribution over the labels, so
// downstream stitching can rely on it.
//
// # Backends
//
//   - SpectralModel: nearest color prototype in CIE Lab space. Needs no
//     weights; useful as a baseline and in tests.
//   - ONNXModel: an exported network run through onnxruntime.
//   - TFServingModel: a network hosted behind TensorFlow Serving's REST API.
//
// # Groups
//
// Each label declares the critical-change groups (forest, urban, water) it
// belongs to. InferGroups derives them from label names for vocabularies
// that were not annotated.
package landcover
