// Package tiling turns a large image into per-pixel class and confidence
// maps by sliding a classification window over it.
//
// A Tiler enumerates window origins 0, s, 2s, ... on each axis. A Stitcher
// feeds the tiles to a classifier in bounded batches and paints each
// prediction over its window. Where windows overlap, the most confident
// prediction wins and ties keep the earlier tile, so results are
// deterministic for a given image and configuration.
//
// Cells that no window reaches stay Unclassified with zero confidence.
package tiling
