package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/pkg/openai"
)

// OpenAIAdapter serves GPT models through the chat completions API. It
// also covers any OpenAI-compatible endpoint via the configured base URL.
type OpenAIAdapter struct {
	models    []string
	rates     map[string]config.ModelRate
	limiter   *rate.Limiter
	newClient func(apiKey string) openai.Client
}

// NewOpenAIAdapter builds the adapter from configuration.
func NewOpenAIAdapter(cfg config.OpenAIConfig, rates map[string]config.ModelRate) *OpenAIAdapter {
	var opts []openai.Option
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIAdapter{
		models:  cfg.Models,
		rates:   rates,
		limiter: newLimiter(cfg.RPS),
		newClient: func(apiKey string) openai.Client {
			return openai.NewClient(apiKey, opts...)
		},
	}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) SupportedModels() []string { return a.models }

func (a *OpenAIAdapter) Invoke(ctx context.Context, modelID, prompt string, params model.GenerationParams, credential string) (comp *Completion, perr *Error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("openai adapter panic", zap.Any("panic", r), zap.String("model", modelID))
			comp = nil
			perr = &Error{Kind: ErrUnknown, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if err := waitLimiter(ctx, a.limiter); err != nil {
		return nil, classify(err, 0)
	}

	messages := make([]openai.Message, 0, 2)
	if params.System != "" {
		messages = append(messages, openai.Message{Role: "system", Content: params.System})
	}
	messages = append(messages, openai.Message{Role: "user", Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: params.Temperature,
	}
	if params.MaxTokens > 0 {
		mt := params.MaxTokens
		req.MaxTokens = &mt
	}

	resp, err := a.newClient(credential).ChatCompletion(ctx, req)
	if err != nil {
		var se *openai.StatusError
		if errors.As(err, &se) {
			return nil, classify(err, se.StatusCode)
		}
		return nil, classify(err, 0)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: ErrUpstream, Message: "no choices in response"}
	}

	choice := resp.Choices[0]
	if strings.EqualFold(choice.FinishReason, "content_filter") {
		return nil, &Error{Kind: ErrContentFiltered, Message: "completion stopped by content filter"}
	}

	return &Completion{
		Content: choice.Message.Content,
		Usage: model.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		UsageExact: true,
	}, nil
}

func (a *OpenAIAdapter) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	return costFor(a.rates, modelID, inputTokens, outputTokens)
}

func (a *OpenAIAdapter) ValidateCredential(ctx context.Context, credential string) bool {
	if credential == "" || len(a.models) == 0 {
		return false
	}
	one := 1
	_, err := a.newClient(credential).ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.models[0],
		Messages:  []openai.Message{{Role: "user", Content: "ping"}},
		MaxTokens: &one,
	})
	return err == nil
}
