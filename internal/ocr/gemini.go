package ocr

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey    string
	Model     string
	Prompt    string
	MaxTokens int

	// Temperature and TopP are left out of the request when nil; 0 is sent as is.
	Temperature *float32
	TopP        *float32

	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// GeminiRecognizer reads pages with a Gemini model, sending the page as an
// inline image part.
type GeminiRecognizer struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiRecognizer creates a Gemini API client that shares httpClient.
func NewGeminiRecognizer(ctx context.Context, cfg GeminiConfig, httpClient *http.Client) (*GeminiRecognizer, error) {
	const op = "NewGeminiRecognizer"

	if cfg.APIKey == "" {
		return nil, NewOCRError(op, errors.New("missing GEMINI_API_KEY"), "")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Gemini client")
	}
	return &GeminiRecognizer{client: client, cfg: cfg}, nil
}

// Recognize asks the model to transcribe the page.
func (g *GeminiRecognizer) Recognize(ctx context.Context, image PageImage) (string, error) {
	prompt := g.cfg.Prompt
	if prompt == "" {
		prompt = "Transcribe all text on this page as Markdown."
	}
	content := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data}},
			{Text: prompt},
		},
	}}

	genCfg := &genai.GenerateContentConfig{
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
	}
	if g.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, content, genCfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if res == nil || len(res.Candidates) == 0 {
		return "", withKind(ErrMalformedResponse, errors.New("response has no candidates"))
	}
	return res.Text(), nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return withKind(classifyStatus(apiErr.Code), err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return withKind(classifyStatus(apiErrPtr.Code), err)
	}
	return classifyTransportError(err)
}
