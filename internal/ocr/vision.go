package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// VisionEngine extracts page text with a vision chat model behind an
// OpenAI-compatible API (Together AI, OpenAI).
type VisionEngine struct {
	name         string
	apiKey       string
	baseURL      string
	model        string
	preprocessor *Preprocessor
}

// NewVisionEngine creates a vision OCR engine. The client is built per call so
// a request-supplied key never leaks into other requests.
func NewVisionEngine(name, apiKey, baseURL, model string, preprocessor *Preprocessor) *VisionEngine {
	return &VisionEngine{
		name:         name,
		apiKey:       apiKey,
		baseURL:      baseURL,
		model:        model,
		preprocessor: preprocessor,
	}
}

func newTogetherEngine(cfg *models.Config) (Engine, error) {
	model := cfg.AI.Together.VisionModel
	if cfg.OCR.Model != "" {
		model = cfg.OCR.Model
	}
	return NewVisionEngine("together", cfg.AI.Together.APIKey, cfg.AI.Together.BaseURL, model,
		NewPreprocessor(cfg.OCR.MaxDimension)), nil
}

func newOpenAIEngine(cfg *models.Config) (Engine, error) {
	model := cfg.AI.OpenAI.VisionModel
	if cfg.OCR.Model != "" {
		model = cfg.OCR.Model
	}
	return NewVisionEngine("openai", cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.BaseURL, model,
		NewPreprocessor(cfg.OCR.MaxDimension)), nil
}

func (e *VisionEngine) Name() string { return e.name }

// Recognize sends the preprocessed image as a data URI together with the
// markdown extraction prompt.
func (e *VisionEngine) Recognize(ctx context.Context, path string, apiKey string) (string, error) {
	key := e.apiKey
	if apiKey != "" {
		key = apiKey
	}
	if key == "" {
		return "", fmt.Errorf("%s: %w", e.name, ErrNotConfigured)
	}

	imageData, mimeType, err := e.preprocessor.PreprocessImage(path)
	if err != nil {
		return "", err
	}
	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(imageData)

	cfg := openai.DefaultConfig(key)
	if e.baseURL != "" {
		cfg.BaseURL = e.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURI,
						},
					},
				},
			},
		},
		Temperature: 0,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s vision request: %w", e.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(e.name + " returned no choices")
	}
	text := cleanText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", e.name, ErrNoText)
	}
	return text, nil
}
