package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"

	apperrors "content-forge-api/pkg/errors"
)

var statusCodeRe = regexp.MustCompile(`\b(400|401|403|404|429|500|502|503|504)\b`)

// blockedFinishReasons 供应商因安全策略截断输出时的结束原因
var blockedFinishReasons = map[string]bool{
	"content_filter":     true,
	"safety":             true,
	"prohibited_content": true,
	"blocklist":          true,
	"spii":               true,
}

// IsBlockedFinishReason 结束原因是否表示被安全策略拦截
func IsBlockedFinishReason(reason string) bool {
	return blockedFinishReasons[strings.ToLower(strings.TrimSpace(reason))]
}

// ClassifyError 把供应商错误映射到应用错误码，不做重试判断
func ClassifyError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrUpstreamTimeout.WithError(err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.ErrUpstreamFailed.WithDetail("request cancelled").WithError(err)
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindString(msg); m != "" {
		switch m {
		case "400", "404":
			return apperrors.ErrUpstreamBadRequest.WithError(err)
		case "401", "403":
			return apperrors.ErrUpstreamUnauthorized.WithError(err)
		case "429":
			return apperrors.ErrUpstreamRateLimited.WithError(err)
		case "504":
			return apperrors.ErrUpstreamTimeout.WithError(err)
		default:
			return apperrors.ErrUpstreamServerError.WithError(err)
		}
	}

	switch {
	case strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		return apperrors.ErrContentBlocked.WithError(err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		return apperrors.ErrUpstreamRateLimited.WithError(err)
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission_denied"):
		return apperrors.ErrUpstreamUnauthorized.WithError(err)
	case strings.Contains(msg, "invalid_argument") || strings.Contains(msg, "bad request"):
		return apperrors.ErrUpstreamBadRequest.WithError(err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return apperrors.ErrUpstreamTimeout.WithError(err)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "internal"):
		return apperrors.ErrUpstreamServerError.WithError(err)
	default:
		return apperrors.ErrUpstreamFailed.WithError(err)
	}
}
