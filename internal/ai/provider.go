package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

var (
	// ErrProviderNotConfigured is returned when the selected provider has no API key.
	ErrProviderNotConfigured = errors.New("ai provider is not configured")
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")
)

const systemPrompt = "You are a financial analyst who writes clear, well structured sections of corporate annual reports in Markdown."

// Provider generates text for a prompt
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewProvider creates the named provider from configuration. An empty name
// selects cfg.DefaultProvider. A non-empty apiKey replaces the configured key
// for this provider only.
func NewProvider(cfg models.AIConfig, name, apiKey string) (Provider, error) {
	if name == "" {
		name = cfg.DefaultProvider
	}
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		switch name {
		case "openai":
			cfg.OpenAI.APIKey = apiKey
		case "groq":
			cfg.Groq.APIKey = apiKey
		case "together":
			cfg.Together.APIKey = apiKey
		case "gemini":
			cfg.Gemini.APIKey = apiKey
		}
	}
	switch name {
	case "openai":
		return newOpenAICompatible(name, cfg.OpenAI)
	case "groq":
		return newOpenAICompatible(name, cfg.Groq)
	case "together":
		return newOpenAICompatible(name, cfg.Together)
	case "gemini":
		if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrProviderNotConfigured)
		}
		return &GeminiProvider{
			apiKey:      strings.TrimSpace(cfg.Gemini.APIKey),
			model:       cfg.Gemini.Model,
			temperature: cfg.Gemini.Temperature,
			maxTokens:   cfg.Gemini.MaxTokens,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", name)
	}
}

// Configured reports which providers have an API key, for health output
func Configured(cfg models.AIConfig) map[string]bool {
	return map[string]bool{
		"openai":   cfg.OpenAI.APIKey != "",
		"groq":     cfg.Groq.APIKey != "",
		"together": cfg.Together.APIKey != "",
		"gemini":   cfg.Gemini.APIKey != "",
	}
}

// OpenAIProvider talks to any OpenAI-compatible chat completion API
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newOpenAICompatible(name string, pc models.ProviderConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(pc.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrProviderNotConfigured)
	}
	cfg := openai.DefaultConfig(pc.APIKey)
	if pc.BaseURL != "" {
		cfg.BaseURL = pc.BaseURL
	}
	temperature := pc.Temperature
	if temperature == 0 {
		temperature = 0.3
	}
	maxTokens := pc.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}
	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		model:       pc.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", p.name, ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiProvider generates text with Google Gemini
type GeminiProvider struct {
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	if p.temperature > 0 {
		m.SetTemperature(p.temperature)
	}
	if p.maxTokens > 0 {
		m.SetMaxOutputTokens(int32(p.maxTokens))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}
