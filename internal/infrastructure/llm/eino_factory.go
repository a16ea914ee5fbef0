// Package llm 外部大模型调用：eino ChatModel 工厂与内容生成客户端
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"content-forge-api/internal/config"
)

// EinoFactory 按 provider 管理 Eino ChatModel 实例
type EinoFactory struct {
	llm    *config.LLMConfig
	gen    *config.GenerationConfig
	models map[string]model.ToolCallingChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		llm:    &cfg.LLM,
		gen:    &cfg.Generation,
		models: make(map[string]model.ToolCallingChatModel),
	}
}

// Get 获取指定 provider 的 ChatModel，未指定时使用默认 provider
func (f *EinoFactory) Get(ctx context.Context, provider string) (model.ToolCallingChatModel, error) {
	if provider == "" {
		provider = f.llm.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[provider]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[provider]; ok {
		return m, nil
	}

	providerCfg, ok := f.llm.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", provider)
	}

	// 供应商的 OpenAI 兼容端点
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       f.gen.DefaultModel,
		MaxTokens:   ptr(f.gen.MaxOutputTokens),
		Temperature: ptr(float32(f.gen.Temperature)),
		TopP:        ptr(float32(f.gen.TopP)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", provider, err)
	}

	f.models[provider] = chatModel
	return chatModel, nil
}

func ptr[T any](v T) *T {
	return &v
}
