package ocr

import (
	"context"
	"fmt"
	"net/http"

	"pdf2md/internal/config"
)

// NewRecognizer builds the backend selected by cfg.OCR.Backend. HTTP based
// backends share httpClient.
func NewRecognizer(ctx context.Context, cfg *config.Config, httpClient *http.Client) (Recognizer, error) {
	creds := GoogleCredentials{
		JSON: cfg.Google.Credentials,
		File: cfg.Google.CredentialsFile,
	}

	switch cfg.OCR.Backend {
	case config.BackendOpenAI:
		return NewOpenAIRecognizer(OpenAIConfig{
			Endpoint:    cfg.OCR.Endpoint,
			APIKey:      cfg.OCR.APIKey,
			Model:       cfg.OCR.Model,
			Prompt:      cfg.OCR.Prompt,
			MaxTokens:   cfg.OCR.MaxTokens,
			Temperature: cfg.OCR.Temperature,
			TopP:        cfg.OCR.TopP,
		}, httpClient), nil
	case config.BackendGemini:
		temperature, topP := cfg.OCR.Temperature, cfg.OCR.TopP
		r, err := NewGeminiRecognizer(ctx, GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.OCR.Model,
			Prompt:      cfg.OCR.Prompt,
			MaxTokens:   cfg.OCR.MaxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendVision:
		r, err := NewVisionRecognizer(ctx, creds)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendDocumentAI:
		r, err := NewDocumentAIRecognizer(ctx, DocumentAIConfig{
			ProjectID:   cfg.Google.Project,
			Location:    cfg.Google.Location,
			ProcessorID: cfg.Google.ProcessorID,
			Credentials: creds,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.OCR.Backend)
	}
}

// ClientConfigFrom extracts the retry policy from cfg.
func ClientConfigFrom(cfg *config.Config) ClientConfig {
	return ClientConfig{
		RequestTimeout:    cfg.OCR.RequestTimeout(),
		MaxRetries:        cfg.OCR.MaxRetries,
		BackoffBase:       cfg.OCR.BackoffBase,
		BackoffMax:        cfg.OCR.BackoffMax,
		RequestsPerSecond: cfg.OCR.RequestsPerSecond,
	}
}
