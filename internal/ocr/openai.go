package ocr

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"pdf2md/internal/logger"
)

// OpenAIConfig configures an OpenAI-compatible chat-completions backend.
type OpenAIConfig struct {
	// Endpoint is the API base URL, e.g. http://localhost:9090/v1. A full
	// .../chat/completions URL is accepted too.
	Endpoint    string
	APIKey      string
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIRecognizer extracts page text through a chat-completions request
// carrying the page as an image_url data URL.
type OpenAIRecognizer struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAIRecognizer creates a recognizer that sends requests through httpClient.
func NewOpenAIRecognizer(cfg OpenAIConfig, httpClient *http.Client) *OpenAIRecognizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL(cfg.Endpoint)
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAIRecognizer{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		log:    logger.WithComponent("ocr-openai"),
	}
}

func baseURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	return strings.TrimSuffix(endpoint, "/chat/completions")
}

// Recognize sends one chat-completions request for the page.
func (r *OpenAIRecognizer) Recognize(ctx context.Context, image PageImage) (string, error) {
	parts := []openai.ChatMessagePart{{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: image.DataURL()},
	}}
	if r.cfg.Prompt != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: r.cfg.Prompt,
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		TopP:        r.cfg.TopP,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", withKind(ErrMalformedResponse, errors.New("response has no choices"))
	}
	choice := resp.Choices[0]
	// A null or missing message decodes to the zero value; a blank page still
	// carries a role.
	if choice.Message.Role == "" && choice.Message.Content == "" && len(choice.Message.MultiContent) == 0 {
		return "", withKind(ErrMalformedResponse, errors.New("choice has no message"))
	}
	if choice.FinishReason == openai.FinishReasonLength {
		r.log.Warn().
			Int("page", image.Index+1).
			Msg("OCR output truncated by max_tokens")
	}
	return choice.Message.Content, nil
}

// Ping lists the models served by the endpoint.
func (r *OpenAIRecognizer) Ping(ctx context.Context) error {
	models, err := r.client.ListModels(ctx)
	if err != nil {
		return classifyOpenAIError(err)
	}
	for _, m := range models.Models {
		if m.ID == r.cfg.Model {
			return nil
		}
	}
	if len(models.Models) > 0 {
		r.log.Warn().
			Str("model", r.cfg.Model).
			Int("served_models", len(models.Models)).
			Msg("Configured model not listed by endpoint")
	}
	return nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return withKind(classifyStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return withKind(classifyStatus(reqErr.HTTPStatusCode), err)
	}

	return classifyTransportError(err)
}
