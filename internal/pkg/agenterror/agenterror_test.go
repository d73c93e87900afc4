package agenterror

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		retryable bool
	}{
		{0, KindTransport, true},
		{408, KindServerRetryable, true},
		{425, KindServerRetryable, true},
		{429, KindServerRetryable, true},
		{500, KindServerRetryable, true},
		{502, KindServerRetryable, true},
		{503, KindServerRetryable, true},
		{504, KindServerRetryable, true},
		{400, KindServerTerminal, false},
		{401, KindServerTerminal, false},
		{403, KindServerTerminal, false},
		{404, KindServerTerminal, false},
		{409, KindServerTerminal, false},
		{410, KindServerTerminal, false},
		{422, KindServerTerminal, false},
		{418, KindServerTerminal, false},
		{599, KindServerRetryable, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, 0, nil)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.retryable, err.IsRetryable())
		})
	}
}

func TestRetryAfterPropagation(t *testing.T) {
	err := FromStatus(429, 2*time.Second, nil)

	ra, ok := RetryAfterOf(err)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, ra)

	_, ok = RetryAfterOf(FromStatus(500, 0, nil))
	assert.False(t, ok)
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := FromStatus(503, 0, nil)
	wrapped := fmt.Errorf("submitting batch: %w", inner)

	assert.Equal(t, KindServerRetryable, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("opaque")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsRetryableUnclassifiedDefaults(t *testing.T) {
	opaque := errors.New("opaque")

	assert.True(t, IsRetryable(opaque, true))
	assert.False(t, IsRetryable(opaque, false))
	assert.False(t, IsRetryable(nil, true))
}

func TestWithDetailAccumulates(t *testing.T) {
	err := NewConfig(CodeInvalidConfig, "bad config").
		WithDetail("field", "api_key").
		WithDetail("reason", "missing")

	details, ok := err.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "api_key", details["field"])
	assert.Equal(t, "missing", details["reason"])
}

func TestCircuitOpenAndAbortedAreNotRetryable(t *testing.T) {
	assert.False(t, NewCircuitOpen("/x").IsRetryable())
	assert.False(t, NewAborted(nil).IsRetryable())
}
