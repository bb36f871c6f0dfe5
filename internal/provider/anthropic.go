package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/pkg/anthropic"
)

const anthropicMaxTokens = 2048

// AnthropicAdapter serves Claude models through the official SDK.
type AnthropicAdapter struct {
	models  []string
	rates   map[string]config.ModelRate
	limiter *rate.Limiter
	// newClient is swapped in tests.
	newClient func(apiKey string) anthropic.Client
}

// NewAnthropicAdapter builds the adapter from configuration. rps bounds
// the request rate across all concurrent orchestrations; zero disables
// limiting.
func NewAnthropicAdapter(cfg config.AnthropicConfig, rates map[string]config.ModelRate) *AnthropicAdapter {
	return &AnthropicAdapter{
		models:    cfg.Models,
		rates:     rates,
		limiter:   newLimiter(cfg.RPS),
		newClient: anthropic.NewClient,
	}
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) SupportedModels() []string { return a.models }

func (a *AnthropicAdapter) Invoke(ctx context.Context, modelID, prompt string, params model.GenerationParams, credential string) (comp *Completion, perr *Error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("anthropic adapter panic", zap.Any("panic", r), zap.String("model", modelID))
			comp = nil
			perr = &Error{Kind: ErrUnknown, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if err := waitLimiter(ctx, a.limiter); err != nil {
		return nil, classify(err, 0)
	}

	maxTokens := int64(anthropicMaxTokens)
	if params.MaxTokens > 0 {
		maxTokens = int64(params.MaxTokens)
	}

	resp, err := a.newClient(credential).CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   maxTokens,
		System:      params.System,
		Prompt:      prompt,
		Temperature: params.Temperature,
	})
	if err != nil {
		return nil, classify(err, anthropic.StatusCode(err))
	}

	if resp.StopReason == "refusal" {
		return nil, &Error{Kind: ErrContentFiltered, Message: "model refused to answer"}
	}

	in := int(resp.Usage.InputTokens)
	out := int(resp.Usage.OutputTokens)
	return &Completion{
		Content: resp.Text,
		Usage: model.TokenUsage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
		UsageExact: true,
	}, nil
}

func (a *AnthropicAdapter) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	return costFor(a.rates, modelID, inputTokens, outputTokens)
}

func (a *AnthropicAdapter) ValidateCredential(ctx context.Context, credential string) bool {
	if credential == "" || len(a.models) == 0 {
		return false
	}
	_, err := a.newClient(credential).CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.models[0],
		MaxTokens: 1,
		Prompt:    "ping",
	})
	return err == nil
}
