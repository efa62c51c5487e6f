package scanning

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is a fast multimodal model suited for text extraction
const DefaultGeminiModel = "gemini-3-flash-preview"

// Gemini implements the Model interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a new Gemini Model instance.
// baseURL is optional and overrides the API endpoint.
func NewGemini(apiKey, modelName, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  modelName,
	}, nil
}

// Name returns the backend and model name
func (g *Gemini) Name() string {
	return "gemini/" + g.model
}

// Generate sends the image followed by the instruction in a single request
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType()),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Config.Temperature),
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(req.Config.ThinkingBudget),
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	return resp.Text(), nil
}

// Close is a no-op; the Gemini client holds no open connections of its own
func (g *Gemini) Close() error {
	return nil
}
