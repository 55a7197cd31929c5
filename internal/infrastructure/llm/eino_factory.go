// Package llm 提供 LLM ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"doc-qa-api/internal/config"
	"doc-qa-api/pkg/errors"
)

// EinoFactory 按提供商名惰性创建并缓存 ChatModel。
// 所有提供商都走 OpenAI 兼容接口，Ollama 通过其 /v1 接入。
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建工厂；默认提供商必须存在于 providers 中
func NewEinoFactory(cfg *config.LLMConfig) (*EinoFactory, error) {
	if cfg.DefaultProvider == "" {
		return nil, errors.ErrConfiguration.WithDetail("llm.default_provider is required")
	}
	if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
		return nil, errors.ErrConfiguration.WithDetail(
			fmt.Sprintf("default provider %q not in configured providers %v", cfg.DefaultProvider, providerNames(cfg)))
	}
	return &EinoFactory{
		config: cfg,
		models: make(map[string]model.BaseChatModel),
	}, nil
}

// Get 返回指定提供商的 ChatModel，name 为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, errors.ErrConfiguration.WithDetail(fmt.Sprintf("llm provider %q not configured", name))
	}
	chatModel, err := newChatModel(ctx, providerCfg)
	if err != nil {
		return nil, errors.ErrConfiguration.WithError(fmt.Errorf("create chat model %s: %w", name, err))
	}

	f.models[name] = chatModel
	return chatModel, nil
}

func newChatModel(ctx context.Context, p config.ProviderConfig) (model.BaseChatModel, error) {
	if strings.TrimSpace(p.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(p.BaseURL) == "" {
		return nil, fmt.Errorf("base_url is required")
	}

	temperature := float32(p.Temperature)
	modelCfg := &openai.ChatModelConfig{
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		Temperature: &temperature,
		Timeout:     p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		modelCfg.MaxTokens = &maxTokens
	}
	return openai.NewChatModel(ctx, modelCfg)
}

func providerNames(cfg *config.LLMConfig) []string {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
