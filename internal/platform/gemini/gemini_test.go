package gemini

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/aaasdream/ai-studio-like/internal/generation"
)

func apiError(code int, message string) error {
	return genai.APIError{Code: code, Message: message}
}

func TestClassifyRemoteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "rate limited is transient",
			err:     apiError(http.StatusTooManyRequests, "quota exceeded"),
			wantErr: generation.ErrTransientFailure,
		},
		{
			name:    "internal server error is transient",
			err:     apiError(http.StatusInternalServerError, "oops"),
			wantErr: generation.ErrTransientFailure,
		},
		{
			name:    "service unavailable is transient",
			err:     apiError(http.StatusServiceUnavailable, "overloaded"),
			wantErr: generation.ErrTransientFailure,
		},
		{
			name:    "gateway timeout is transient",
			err:     apiError(http.StatusGatewayTimeout, "timeout"),
			wantErr: generation.ErrTransientFailure,
		},
		{
			name:    "bad request is permanent",
			err:     apiError(http.StatusBadRequest, "invalid argument"),
			wantErr: generation.ErrGenerationFailed,
		},
		{
			name:    "permission denied is permanent",
			err:     apiError(http.StatusForbidden, "permission denied"),
			wantErr: generation.ErrGenerationFailed,
		},
		{
			name:    "plain network error is assumed transient",
			err:     fmt.Errorf("connection reset by peer"),
			wantErr: generation.ErrTransientFailure,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classifyRemoteError(tc.err)
			assert.ErrorIs(t, got, tc.wantErr)
		})
	}
}

func TestIsTooSmallError(t *testing.T) {
	t.Parallel()

	assert.True(t, isTooSmallError(
		apiError(http.StatusBadRequest, "Cached content is too small. min_total_token_count is 4096")))
	assert.True(t, isTooSmallError(
		apiError(http.StatusBadRequest, "content TOO SMALL for caching")))

	assert.False(t, isTooSmallError(
		apiError(http.StatusBadRequest, "invalid model name")))
	assert.False(t, isTooSmallError(
		apiError(http.StatusInternalServerError, "too small")))
	assert.False(t, isTooSmallError(fmt.Errorf("too small")))
}
