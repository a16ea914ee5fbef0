package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyContentType llmCtxKey = "llm_content_type"
	llmCtxKeyProvider    llmCtxKey = "llm_provider"
)

// WithContentType 在 context 中标注本次调用的内容类型，供指标与追踪使用
func WithContentType(ctx context.Context, contentType string) context.Context {
	if ctx == nil {
		return nil
	}
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyContentType, ct)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

func ContentTypeFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyContentType)
}

func ProviderFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyProvider)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
