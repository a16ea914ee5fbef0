package service

import "context"

// CallMode 模型调用方式
type CallMode int

const (
	// ModeText 自由文本生成
	ModeText CallMode = iota
	// ModeFunctionCall 要求模型调用声明的内容生成函数
	ModeFunctionCall
)

func (m CallMode) String() string {
	if m == ModeFunctionCall {
		return "function_call"
	}
	return "text"
}

// ModelRequest 一次模型调用的输入
type ModelRequest struct {
	Model  string
	Prompt string
	Mode   CallMode
}

// RawResponse 模型原始输出，三种形态之一：
// TextResponse / HTMLPayload / FunctionCallResponse
type RawResponse interface {
	rawResponse()
}

// TextResponse 纯文本或 markdown 文本
type TextResponse struct {
	Text string
}

// HTMLPayload 结构化载荷中直接携带的 html 字段
type HTMLPayload struct {
	HTML string
}

// FunctionCallResponse 模型发起的函数调用，Arguments 为 JSON 字符串
type FunctionCallResponse struct {
	Name      string
	Arguments string
}

func (TextResponse) rawResponse()         {}
func (HTMLPayload) rawResponse()          {}
func (FunctionCallResponse) rawResponse() {}

// ModelResult 模型调用结果
type ModelResult struct {
	Raw              RawResponse
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens 本次调用消耗的 token 总数
func (r *ModelResult) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.PromptTokens + r.CompletionTokens
}

// ModelClient 外部模型调用端口，错误需映射到应用错误码
type ModelClient interface {
	Generate(ctx context.Context, req ModelRequest) (*ModelResult, error)
}
