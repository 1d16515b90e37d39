// Package ocr provides Optical Character Recognition (OCR) functionality using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2) behind the
// Recognizer interface so typography extraction can be tested with a fake.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// # Regions
//
// RecognizeRegion crops a region, upscales it when it is shorter than
// 120 pixels, and maps word boxes back to the source image. Images are passed
// to Tesseract in memory; no temporary files are written.
//
// # Error Handling
//
// If bounding box extraction fails (e.g., Tesseract version mismatch),
// Recognize still returns the extracted text with an empty Words slice.
package ocr
