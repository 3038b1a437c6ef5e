package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that each error kind maps to the documented HTTP status.
// Scope: Unit Test
// Expected: 401/403/404/409/400/503, and 500 for unknown kinds.
// Test Case ID: ERR-01
func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindInvalidState, http.StatusConflict},
		{KindConflict, http.StatusConflict},
		{KindValidation, http.StatusBadRequest},
		{KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.HTTPStatus())
		})
	}
}

// TestPurpose: Validates that the kind survives additional wrapping with %w.
// Scope: Unit Test
// Expected: KindOf finds the kind through fmt.Errorf wrapping; plain errors are UNKNOWN.
// Test Case ID: ERR-02
func TestKindOf_WalksChain(t *testing.T) {
	base := InvalidState("Only READY projects can enter revision")
	wrapped := fmt.Errorf("request revision: %w", base)

	assert.Equal(t, KindInvalidState, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindInvalidState))
	assert.Equal(t, "Only READY projects can enter revision", Message(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "internal error", Message(errors.New("boom")))
}

// TestPurpose: Validates that upstream errors keep their cause for logging.
// Scope: Unit Test
// Expected: errors.Is reaches the wrapped cause.
// Test Case ID: ERR-03
func TestUpstream_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("failed to load project", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}
