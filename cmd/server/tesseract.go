//go:build tesseract

package main

// Local OCR needs cgo with libtesseract and leptonica; build with -tags tesseract.
import _ "github.com/empire-ui/report-ocr-service/internal/ocr/tesseract"
