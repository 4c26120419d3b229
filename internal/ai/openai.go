package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"stock-dashboard/internal/api"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/trace"
	"stock-dashboard/internal/types"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type OpenAIProvider struct {
	client      *api.Client
	model       string
	temperature float32
	maxTokens   int
	endpoint    string
}

func NewOpenAIProvider(cfg *store.Config) *OpenAIProvider {
	return &OpenAIProvider{
		client: api.NewClient(
			api.WithTimeout(60*time.Second),
			api.WithHeader("Content-Type", "application/json"),
		),
		model:       cfg.LLM.OpenAIModel,
		temperature: cfg.LLM.Temperature,
		maxTokens:   cfg.LLM.MaxTokens,
		endpoint:    openAIEndpoint,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("openai: %w", types.ErrCredentialsMissing)
	}

	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role != "user" && role != "assistant" && role != "system" {
			role = "user"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}

	body := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": p.temperature,
		"max_tokens":  p.maxTokens,
	}

	resp, err := p.client.POST(ctx, p.endpoint, body, map[string]string{
		"Authorization": "Bearer " + apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w: %v", types.ErrSourceUnavailable, err)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := resp.ParseJSON(&r); err != nil {
		return "", fmt.Errorf("openai: %w: %v", types.ErrMalformedResponse, err)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: no choices", types.ErrMalformedResponse)
	}

	return strings.TrimSpace(r.Choices[0].Message.Content), nil
}
