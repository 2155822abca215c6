package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// GeminiEngine extracts page text with a Gemini multimodal model.
type GeminiEngine struct {
	apiKey       string
	model        string
	preprocessor *Preprocessor
}

func newGeminiEngine(cfg *models.Config) (Engine, error) {
	model := cfg.AI.Gemini.VisionModel
	if cfg.OCR.Model != "" {
		model = cfg.OCR.Model
	}
	return &GeminiEngine{
		apiKey:       strings.TrimSpace(cfg.AI.Gemini.APIKey),
		model:        strings.TrimSpace(model),
		preprocessor: NewPreprocessor(cfg.OCR.MaxDimension),
	}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) Recognize(ctx context.Context, path string, apiKey string) (string, error) {
	key := e.apiKey
	if apiKey != "" {
		key = apiKey
	}
	if key == "" {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}

	imageData, mimeType, err := e.preprocessor.PreprocessImage(path)
	if err != nil {
		return "", err
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.model)
	m.SetTemperature(0)

	resp, err := m.GenerateContent(ctx,
		genai.Text(extractionPrompt),
		genai.Blob{MIMEType: mimeType, Data: imageData},
	)
	if err != nil {
		return "", fmt.Errorf("gemini ocr: %w", err)
	}
	text := cleanText(firstText(resp))
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrNoText)
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}
