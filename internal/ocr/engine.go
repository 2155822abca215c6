package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

var (
	// ErrNotConfigured is returned when an engine has no API key to call its provider with.
	ErrNotConfigured = errors.New("ocr engine is not configured")
	// ErrNoText is returned when a provider answers without any extracted text.
	ErrNoText = errors.New("no text extracted")
)

// Engine extracts the text of one image file. apiKey, when non-empty,
// overrides the key the engine was configured with.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string, apiKey string) (string, error)
}

// Factory builds an engine from the service configuration.
type Factory func(cfg *models.Config) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"together": newTogetherEngine,
		"openai":   newOpenAIEngine,
		"gemini":   newGeminiEngine,
	}
)

// Register makes an engine available under name. Engines that need cgo, such
// as tesseract, register themselves from their own package.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Engines lists registered engine names.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the engine named by cfg.OCR.Engine and wraps it so PDFs with a
// text layer bypass OCR.
func New(cfg *models.Config) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.OCR.Engine]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported OCR engine: %s (available: %s)", cfg.OCR.Engine, strings.Join(Engines(), ", "))
	}
	engine, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	return &Router{Images: engine, PDFs: NewPDFTextEngine()}, nil
}

// Router sends PDFs to the PDF text extractor and everything else to the image engine.
type Router struct {
	Images Engine
	PDFs   Engine
}

func (r *Router) Name() string { return r.Images.Name() }

func (r *Router) Recognize(ctx context.Context, path string, apiKey string) (string, error) {
	if strings.EqualFold(fileExt(path), ".pdf") && r.PDFs != nil {
		return r.PDFs.Recognize(ctx, path, apiKey)
	}
	return r.Images.Recognize(ctx, path, apiKey)
}

func fileExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

const extractionPrompt = `Convert the provided image into Markdown format. Ensure that all content from the page is included, such as headers, footers, subtexts, images (with alt text if possible), tables, and any other elements.

Requirements:
- Output Only Markdown: Return solely the Markdown content without any additional explanations or comments.
- No Delimiters: Do not use code fences or delimiters like ` + "```markdown" + `.
- Complete Content: Do not omit any part of the page, including headers, footers, and subtext.`

// cleanText strips code fences some models wrap their answer in
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
