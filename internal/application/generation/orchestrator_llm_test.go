package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"content-forge-api/internal/application/quota"
	"content-forge-api/internal/infrastructure/llm"
	apperrors "content-forge-api/pkg/errors"
)

// failingChatModel 模拟供应商在建立流时直接返回原始错误
type failingChatModel struct {
	err error
}

func (m failingChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, m.err
}

func (m failingChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, m.err
}

func (m failingChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type staticProvider struct {
	model model.ToolCallingChatModel
}

func (p staticProvider) Get(context.Context, string) (model.ToolCallingChatModel, error) {
	return p.model, nil
}

func TestOrchestrator_ProviderErrorsThroughModelClient(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want apperrors.ErrorCode
	}{
		{name: "400", raw: "error, status code: 400, message: invalid JSON payload", want: apperrors.CodeUpstreamBadRequest},
		{name: "401", raw: "error, status code: 401, message: API key not valid", want: apperrors.CodeUpstreamUnauthorized},
		{name: "429", raw: "error, status code: 429, message: Resource has been exhausted", want: apperrors.CodeUpstreamRateLimited},
		{name: "500", raw: "error, status code: 500, message: internal", want: apperrors.CodeUpstreamServerError},
		{name: "safety", raw: "response was blocked due to SAFETY", want: apperrors.CodeContentBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewClient(staticProvider{model: failingChatModel{err: errors.New(tt.raw)}}, "gemini", llm.Params{})
			ledger := &fakeLedger{decision: quota.Decision{Allowed: true}}
			o := NewOrchestrator(client, NewGate(1), ledger, testModels)

			_, err := o.Generate(context.Background(), resumeRequest())
			if !apperrors.HasCode(err, tt.want) {
				t.Fatalf("Generate() error = %v, want %s", err, tt.want)
			}
		})
	}
}
