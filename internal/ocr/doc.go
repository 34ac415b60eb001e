// Package ocr reads capture years stamped on satellite scenes using
// Tesseract (via gosseract/v2).
//
// # Prerequisites
//
// Tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// ParseYear is pure and usable without Tesseract.
package ocr
