// Package change compares the stitched class maps of two images of the
// same area.
//
// Diff aligns the after map to the before map's size, builds a change mask
// and cleans it with a morphological opening followed by a closing. It
// reports per-class distributions, per-class percentage shifts and three
// critical transitions driven by the label set's group tags.
package change
