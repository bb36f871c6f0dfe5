package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/pkg/gemini"
)

// GeminiAdapter serves Google Gemini models.
type GeminiAdapter struct {
	models    []string
	rates     map[string]config.ModelRate
	limiter   *rate.Limiter
	newClient func(apiKey string) gemini.Client
}

// NewGeminiAdapter builds the adapter from configuration.
func NewGeminiAdapter(cfg config.GeminiConfig, rates map[string]config.ModelRate) *GeminiAdapter {
	return &GeminiAdapter{
		models:    cfg.Models,
		rates:     rates,
		limiter:   newLimiter(cfg.RPS),
		newClient: gemini.NewClient,
	}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) SupportedModels() []string { return a.models }

func (a *GeminiAdapter) Invoke(ctx context.Context, modelID, prompt string, params model.GenerationParams, credential string) (comp *Completion, perr *Error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("gemini adapter panic", zap.Any("panic", r), zap.String("model", modelID))
			comp = nil
			perr = &Error{Kind: ErrUnknown, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if err := waitLimiter(ctx, a.limiter); err != nil {
		return nil, classify(err, 0)
	}

	resp, err := a.newClient(credential).GenerateContent(ctx, gemini.GenerateRequest{
		Model:       modelID,
		Prompt:      prompt,
		System:      params.System,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return nil, classify(err, 0)
	}

	out := &Completion{Content: resp.Text}
	if resp.UsageReported {
		out.Usage = model.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
		out.UsageExact = true
	} else {
		in := estimateTokens(prompt)
		produced := estimateTokens(resp.Text)
		out.Usage = model.TokenUsage{
			PromptTokens:     in,
			CompletionTokens: produced,
			TotalTokens:      in + produced,
		}
	}
	return out, nil
}

func (a *GeminiAdapter) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	return costFor(a.rates, modelID, inputTokens, outputTokens)
}

func (a *GeminiAdapter) ValidateCredential(ctx context.Context, credential string) bool {
	if credential == "" || len(a.models) == 0 {
		return false
	}
	_, err := a.newClient(credential).GenerateContent(ctx, gemini.GenerateRequest{
		Model:     a.models[0],
		Prompt:    "ping",
		MaxTokens: 1,
	})
	return err == nil
}
