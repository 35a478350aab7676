// Package agent implements the question-answering pipeline: a planner, a
// self-healing analysis code generator, a single-shot SQL generator, a
// self-healing chart generator, and a responder, wired into an eino graph
// over one shared pipeline state per question.
package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"datachat/config"
)

// ModelBuilder produces a chat model per call. useFallback selects the
// fallback model used on the final self-healing attempt.
type ModelBuilder interface {
	Build(ctx context.Context, useFallback bool) (model.BaseChatModel, error)
}

type einoModelBuilder struct {
	cfg config.Config
}

// NewModelBuilder creates the eino-backed model factory for the configured
// provider. Any OpenAI-compatible endpoint works through BaseURL.
func NewModelBuilder(cfg config.Config) ModelBuilder {
	return &einoModelBuilder{cfg: cfg}
}

func (b *einoModelBuilder) Build(ctx context.Context, useFallback bool) (model.BaseChatModel, error) {
	name := b.cfg.PrimaryModel()
	if useFallback {
		name = b.cfg.FallbackModel()
	}
	if name == "" {
		return nil, fmt.Errorf("no model configured for provider %q (fallback=%v)", b.cfg.Provider, useFallback)
	}

	temperature := b.cfg.Temperature
	maxTokens := b.cfg.MaxTokens

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      b.cfg.APIKey,
		BaseURL:     b.cfg.BaseURL,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model %s: %w", name, err)
	}
	return cm, nil
}

// generate issues one blocking system+user call and returns the response
// text.
func generate(ctx context.Context, cm model.BaseChatModel, system, user string) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}
	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return resp.Content, nil
}
