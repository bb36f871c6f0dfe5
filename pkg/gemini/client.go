package gemini

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client defines the Gemini API operations used by the comparison
// orchestrator.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is our own request type for GenerateContent.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	MaxTokens   int
}

// GenerateResponse is our own response type from GenerateContent.
type GenerateResponse struct {
	Text  string
	Usage TokenUsage
	// UsageReported is false when the API returned no usage metadata and
	// the caller should fall back to estimation.
	UsageReported bool
}

// TokenUsage tracks token consumption from the response usage metadata.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

type genaiClient struct {
	apiKey string
}

// NewClient creates a Gemini client for the given API key. The underlying
// genai client is constructed per call because it binds the key at
// construction time.
func NewClient(apiKey string) Client {
	return &genaiClient{apiKey: apiKey}
}

func (c *genaiClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, eris.New("gemini: empty response")
	}

	out := &GenerateResponse{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.UsageReported = true
		out.Usage = TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}
