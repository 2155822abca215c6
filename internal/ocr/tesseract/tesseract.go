//go:build tesseract

// Package tesseract provides a local OCR engine backed by libtesseract.
// Importing it registers the "tesseract" engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/empire-ui/report-ocr-service/internal/models"
	"github.com/empire-ui/report-ocr-service/internal/ocr"
)

func init() {
	ocr.Register("tesseract", func(cfg *models.Config) (ocr.Engine, error) {
		return NewEngine(cfg.OCR.Language, ocr.NewPreprocessor(cfg.OCR.MaxDimension)), nil
	})
}

// Engine implements ocr.Engine with a fresh gosseract client per call.
type Engine struct {
	languages     []string
	preprocessor  *ocr.Preprocessor
	clientFactory func() *gosseract.Client
}

// NewEngine creates a Tesseract engine; language uses Tesseract codes joined
// with "+", e.g. "eng+fra".
func NewEngine(language string, preprocessor *ocr.Preprocessor) *Engine {
	if language == "" {
		language = "eng" // Default to English
	}
	return &Engine{
		languages:     strings.Split(language, "+"),
		preprocessor:  preprocessor,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs Tesseract on the image. The API key is ignored.
func (e *Engine) Recognize(ctx context.Context, path string, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	imageData, _, err := e.preprocessor.PreprocessImage(path)
	if err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	// Tesseract cannot be interrupted; drop the result if the caller gave up.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("tesseract: %w", ocr.ErrNoText)
	}
	return text, nil
}
