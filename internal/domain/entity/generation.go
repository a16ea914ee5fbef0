package entity

// GenerationRequest 一次生成请求，只存在于单次编排调用期间
type GenerationRequest struct {
	ContentType string
	Template    string
	Model       string
	FormData    map[string]any
	// UserID 为空表示匿名调用（如仅持有 API Key），不计入用量
	UserID string
}

// GenerationResult 生成结果
type GenerationResult struct {
	HTML string
	// UsageWarning 用量记账失败时的非致命告警
	UsageWarning string
}
