package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"

	"content-forge-api/internal/config"
	"content-forge-api/internal/domain/service"
	apperrors "content-forge-api/pkg/errors"
	"content-forge-api/pkg/logger"
	"content-forge-api/pkg/tracer"
)

// GenerateContentTool 函数调用模式下声明给模型的内容生成函数
const GenerateContentTool = "generate_content"

var generateContentToolInfo = &schema.ToolInfo{
	Name: GenerateContentTool,
	Desc: "Return the generated content as a complete, self-contained HTML fragment ready for display.",
	ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"html": {
			Type:     schema.String,
			Desc:     "Semantic HTML markup of the generated content, without <html> or <body> wrappers.",
			Required: true,
		},
	}),
}

// safetySettings 每次调用固定附带的安全阈值
var safetySettings = []map[string]string{
	{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_MEDIUM_AND_ABOVE"},
	{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_MEDIUM_AND_ABOVE"},
	{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_MEDIUM_AND_ABOVE"},
	{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_MEDIUM_AND_ABOVE"},
}

// ChatModelProvider 提供 ChatModel 实例（EinoFactory 实现）
type ChatModelProvider interface {
	Get(ctx context.Context, provider string) (model.ToolCallingChatModel, error)
}

// Params 生成参数
type Params struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

// ParamsFromConfig 从生成配置读取参数
func ParamsFromConfig(cfg *config.GenerationConfig) Params {
	return Params{
		Temperature:     float32(cfg.Temperature),
		TopP:            float32(cfg.TopP),
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Client 内容生成模型客户端，实现 service.ModelClient。
// 不做内部重试，也不设超时，超时由调用方控制
type Client struct {
	models   ChatModelProvider
	provider string
	params   Params
}

var _ service.ModelClient = (*Client)(nil)

func NewClient(models ChatModelProvider, provider string, params Params) *Client {
	return &Client{models: models, provider: provider, params: params}
}

// Generate 流式调用模型，累积全部分片后返回完整结果
func (c *Client) Generate(ctx context.Context, req service.ModelRequest) (res *service.ModelResult, err error) {
	ctx, span := tracer.Start(ctx, "llm.Client.Generate")
	span.SetAttributes(
		attribute.String("llm.provider", c.provider),
		attribute.String("llm.model", req.Model),
		attribute.String("llm.mode", req.Mode.String()),
	)
	defer func() { tracer.Finish(span, err) }()

	base, err := c.models.Get(ctx, c.provider)
	if err != nil {
		return nil, apperrors.ErrUpstreamFailed.WithDetail("model unavailable").WithError(err)
	}

	var chatModel model.BaseChatModel = base
	if req.Mode == service.ModeFunctionCall {
		withTools, toolErr := base.WithTools([]*schema.ToolInfo{generateContentToolInfo})
		if toolErr != nil {
			return nil, apperrors.ErrUpstreamFailed.WithDetail("bind generate_content tool").WithError(toolErr)
		}
		chatModel = withTools
	}

	ctx = service.WithProvider(ctx, c.provider)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "content.generate",
		Type:      c.provider,
		Component: components.ComponentOfChatModel,
	})

	reader, err := chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(req.Prompt)}, c.options(req)...)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer reader.Close()

	chunks := make([]*schema.Message, 0, 32)
	for {
		chunk, recvErr := reader.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, ClassifyError(recvErr)
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, apperrors.ErrEmptyResponse
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, apperrors.ErrUpstreamFailed.WithDetail("concat stream chunks").WithError(err)
	}
	return toResult(ctx, msg)
}

func (c *Client) options(req service.ModelRequest) []model.Option {
	opts := make([]model.Option, 0, 5)
	if strings.TrimSpace(req.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(req.Model)))
	}
	if c.params.Temperature > 0 {
		opts = append(opts, model.WithTemperature(c.params.Temperature))
	}
	if c.params.TopP > 0 {
		opts = append(opts, model.WithTopP(c.params.TopP))
	}
	if c.params.MaxOutputTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.params.MaxOutputTokens))
	}

	extra := map[string]any{
		"extra_body": map[string]any{
			"google": map[string]any{"safety_settings": safetySettings},
		},
	}
	if c.params.TopK > 0 {
		extra["top_k"] = c.params.TopK
	}
	opts = append(opts, openaiopts.WithExtraFields(extra))
	return opts
}

func toResult(ctx context.Context, msg *schema.Message) (*service.ModelResult, error) {
	res := &service.ModelResult{}
	if msg.ResponseMeta != nil {
		res.FinishReason = msg.ResponseMeta.FinishReason
		if u := msg.ResponseMeta.Usage; u != nil {
			res.PromptTokens = u.PromptTokens
			res.CompletionTokens = u.CompletionTokens
		}
	}
	if IsBlockedFinishReason(res.FinishReason) {
		logger.Warn(ctx, "model output blocked by safety policy", "finish_reason", res.FinishReason)
		return nil, apperrors.ErrContentBlocked.WithDetail("finish reason: " + res.FinishReason)
	}

	if call := pickToolCall(msg.ToolCalls); call != nil {
		res.Raw = service.FunctionCallResponse{Name: call.Function.Name, Arguments: call.Function.Arguments}
		return res, nil
	}
	res.Raw = service.TextResponse{Text: msg.Content}
	return res, nil
}

// pickToolCall 优先选择声明的内容生成函数
func pickToolCall(calls []schema.ToolCall) *schema.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	for i := range calls {
		if calls[i].Function.Name == GenerateContentTool {
			return &calls[i]
		}
	}
	return &calls[0]
}
