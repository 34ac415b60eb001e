// Package imaging provides the raster operations behind change detection.
//
// It loads satellite scenes (PNG, JPEG, GIF, TIFF, BMP, WebP) through a
// thread-safe ImageCache, cuts tiles out of them, resizes images and
// auxiliary rasters, and runs binary morphology over change masks.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner.
// Regions are half-open: Min is inclusive, Max is exclusive.
//
// # Resampling
//
//   - ResizeNearest copies input pixels and is used for class rasters.
//   - ResizeLinear filters colour images.
//   - ResizeDense bilinearly resamples float matrices such as confidence
//     maps without quantizing them to 8 bits.
//
// # Morphology
//
// Open and Close use a square structuring element. Both are lossy: Open
// deletes regions smaller than the element and Close merges regions
// separated by less than it.
package imaging
