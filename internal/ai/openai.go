package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

// OpenAIProvider runs the extraction against an OpenAI-compatible vision
// endpoint. BaseURL may point at a self-hosted server (Ollama, vLLM) that
// speaks the same protocol.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

func NewOpenAIProvider(cfg models.OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no OpenAI API key configured")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    log.With().Str("component", "openai").Logger(),
	}, nil
}

func (p *OpenAIProvider) Extract(ctx context.Context, fileData []byte, mimeType string) (*models.ExtractedInvoiceData, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(fileData))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: 8192,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: invoiceExtractionPrompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("openai extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	data, err := parseModelResponse(resp.Choices[0].Message.Content)
	if err != nil {
		p.log.Warn().Err(err).Str("model", p.model).Msg("response rejected")
		return nil, ErrUnreadable
	}
	p.log.Info().Str("model", p.model).Msg("extraction succeeded")
	return data, nil
}
