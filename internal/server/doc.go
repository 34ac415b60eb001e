// Package server implements the MCP (Model Context Protocol) server for
// land-cover change detection.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0, one request per
// line on stdin and one response per line on stdout. Supported methods are
// initialize, tools/list, tools/call and ping.
//
// # Available Tools
//
//   - image_load, image_dimensions: image metadata (the image is cached)
//   - image_capture_year: OCR the capture year printed on an image
//   - landcover_labels: the class list with forest/urban/water groups
//   - landcover_classify_image: class shares of a single image
//   - landcover_detect_changes: per-class and critical change between two
//     images, optionally with the cleaned change mask as PNG
//
// # Error Handling
//
// Tool failures are JSON-RPC errors with code -32000, message
// "Tool execution failed" and the error text as data. Analysis errors
// carry the failing image, stage and kind, e.g.
// "after image classify failed (resource): ...".
package server
