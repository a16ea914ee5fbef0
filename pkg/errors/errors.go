// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 认证授权错误 (2xxx)
	CodeTokenExpired     ErrorCode = "2001"
	CodeTokenInvalid     ErrorCode = "2002"
	CodePermissionDenied ErrorCode = "2004"

	// 生成请求错误 (41xx)
	CodeMissingTemplate     ErrorCode = "4101"
	CodeInvalidFormData     ErrorCode = "4102"
	CodeContentBlocked      ErrorCode = "4103"
	CodeInsufficientCredits ErrorCode = "4104"
	CodeUnknownRole         ErrorCode = "4105"
	CodeGenerationDenied    ErrorCode = "4106"
	CodeModelRateLimited    ErrorCode = "4107"
	CodeUnknownModel        ErrorCode = "4108"
	CodeUnknownContentType  ErrorCode = "4109"

	// 外部服务错误 (5xxx)
	CodeStoreTransient ErrorCode = "5001"
	CodeCacheError     ErrorCode = "5002"

	// 模型服务错误 (51xx)
	CodeUpstreamBadRequest   ErrorCode = "5101"
	CodeUpstreamUnauthorized ErrorCode = "5102"
	CodeUpstreamRateLimited  ErrorCode = "5103"
	CodeUpstreamServerError  ErrorCode = "5104"
	CodeUpstreamTimeout      ErrorCode = "5105"
	CodeEmptyResponse        ErrorCode = "5106"
	CodeUpstreamFailed       ErrorCode = "5107"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Detail != "" && e.Err != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.Detail, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使 errors.Is(err, ErrInsufficientCredits) 成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回带详细信息的副本
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeMissingTemplate, CodeInvalidFormData, CodeUnknownModel, CodeUnknownContentType:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeInsufficientCredits:
		return http.StatusPaymentRequired
	case CodeForbidden, CodePermissionDenied, CodeGenerationDenied, CodeUnknownRole:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeContentBlocked:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests, CodeModelRateLimited, CodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstreamBadRequest, CodeUpstreamUnauthorized, CodeUpstreamServerError, CodeEmptyResponse, CodeUpstreamFailed:
		return http.StatusBadGateway
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case CodeServiceUnavailable, CodeStoreTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")

	ErrMissingTemplate     = New(CodeMissingTemplate, "template is required")
	ErrInvalidFormData     = New(CodeInvalidFormData, "invalid form data")
	ErrContentBlocked      = New(CodeContentBlocked, "content was blocked by the safety policy")
	ErrInsufficientCredits = New(CodeInsufficientCredits, "insufficient credits")
	ErrUnknownRole         = New(CodeUnknownRole, "unknown role")
	ErrGenerationDenied    = New(CodeGenerationDenied, "generation limit reached")
	ErrModelRateLimited    = New(CodeModelRateLimited, "model rate limit reached")
	ErrUnknownModel        = New(CodeUnknownModel, "unknown model")
	ErrUnknownContentType  = New(CodeUnknownContentType, "unknown content type")

	ErrStoreTransient = New(CodeStoreTransient, "store temporarily unavailable")

	ErrUpstreamBadRequest   = New(CodeUpstreamBadRequest, "Invalid request format. Please check your input data.")
	ErrUpstreamUnauthorized = New(CodeUpstreamUnauthorized, "Invalid API key. Please check your credentials.")
	ErrUpstreamRateLimited  = New(CodeUpstreamRateLimited, "Rate limit exceeded. Please try again later.")
	ErrUpstreamServerError  = New(CodeUpstreamServerError, "AI service error. Please try again later.")
	ErrUpstreamTimeout      = New(CodeUpstreamTimeout, "AI service did not respond in time. Please try again later.")
	ErrEmptyResponse        = New(CodeEmptyResponse, "AI service returned an empty response.")
	ErrUpstreamFailed       = New(CodeUpstreamFailed, "Failed to generate content. Please try again.")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
