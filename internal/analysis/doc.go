// Package analysis orchestrates land-cover change detection between two
// images and packages the outcome.
//
// A Detector loads both images, stitches class maps for each, diffs them
// and returns a Result. The operation is atomic: any failure returns a nil
// Result and an *Error naming the failure kind, the stage and the image it
// concerns. Nothing is retried.
package analysis
