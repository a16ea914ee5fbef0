package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "content-forge-api/pkg/errors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{name: "bad request", err: errors.New("error, status code: 400, message: invalid JSON payload"), want: apperrors.CodeUpstreamBadRequest},
		{name: "unauthorized", err: errors.New("error, status code: 401, message: API key not valid"), want: apperrors.CodeUpstreamUnauthorized},
		{name: "forbidden", err: errors.New("status code: 403"), want: apperrors.CodeUpstreamUnauthorized},
		{name: "rate limited", err: errors.New("error, status code: 429, message: Resource has been exhausted"), want: apperrors.CodeUpstreamRateLimited},
		{name: "server error", err: errors.New("error, status code: 500, message: internal"), want: apperrors.CodeUpstreamServerError},
		{name: "unavailable", err: errors.New("error, status code: 503"), want: apperrors.CodeUpstreamServerError},
		{name: "gateway timeout", err: errors.New("error, status code: 504"), want: apperrors.CodeUpstreamTimeout},
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: apperrors.CodeUpstreamTimeout},
		{name: "cancelled", err: context.Canceled, want: apperrors.CodeUpstreamFailed},
		{name: "rate limit keyword", err: errors.New("RESOURCE_EXHAUSTED"), want: apperrors.CodeUpstreamRateLimited},
		{name: "safety keyword", err: errors.New("response was blocked due to SAFETY"), want: apperrors.CodeContentBlocked},
		{name: "unknown", err: errors.New("connection refused"), want: apperrors.CodeUpstreamFailed},
		{name: "app error kept", err: apperrors.ErrEmptyResponse, want: apperrors.CodeEmptyResponse},
		{name: "wrapped app error kept", err: fmt.Errorf("stream: %w", apperrors.ErrContentBlocked), want: apperrors.CodeContentBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got == nil || got.Code != tt.want {
				t.Fatalf("ClassifyError(%v) = %v, want code %s", tt.err, got, tt.want)
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Fatal("ClassifyError(nil) should be nil")
	}
}

func TestIsBlockedFinishReason(t *testing.T) {
	for _, r := range []string{"content_filter", "SAFETY", " prohibited_content "} {
		if !IsBlockedFinishReason(r) {
			t.Errorf("%q should be blocked", r)
		}
	}
	for _, r := range []string{"stop", "length", "tool_calls", ""} {
		if IsBlockedFinishReason(r) {
			t.Errorf("%q should not be blocked", r)
		}
	}
}
