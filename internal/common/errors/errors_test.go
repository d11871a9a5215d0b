package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name          string
		err           *StandardError
		wantCode      string
		wantRetries   int
		wantRetryable bool
	}{
		{
			name:          "store unavailable is retried",
			err:           NewStoreUnavailableError("records_on", fmt.Errorf("connection refused")),
			wantCode:      "STORE_UNAVAILABLE",
			wantRetries:   3,
			wantRetryable: true,
		},
		{
			name:          "invalid intent is thrown",
			err:           NewInvalidIntentError("no fields"),
			wantCode:      "INVALID_INTENT",
			wantRetries:   0,
			wantRetryable: false,
		},
		{
			name:          "cache errors never retry",
			err:           NewCacheUnavailableError(fmt.Errorf("redis down")),
			wantCode:      "CACHE_UNAVAILABLE",
			wantRetries:   0,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)
			assert.Equal(t, tt.wantRetryable, bpmnErr.Retryable)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestStandardError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	wrapped := fmt.Errorf("tier one: %w", NewRemoteUnavailableError(cause))

	assert.True(t, stderrors.Is(wrapped, cause))
	assert.True(t, HasCode(wrapped, ErrCodeRemoteUnavailable))
	assert.False(t, HasCode(wrapped, ErrCodeStoreUnavailable))

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "Remote price source unavailable", stdErr.Message)
}

func TestNormalizeError(t *testing.T) {
	stdErr := NormalizeError(fmt.Errorf("boom"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), stdErr.Code)
	assert.False(t, stdErr.Retryable)

	original := NewInvalidIntentError("empty")
	assert.Same(t, original, NormalizeError(original))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeStoreUnavailable))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeRemoteUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidIntent))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeIntentAPITimeout))
	assert.True(t, IsRetryableErrorCode(ErrCodeDirectoryUnavailable))
}
