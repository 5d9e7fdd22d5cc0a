package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID(t *testing.T) {
	t.Run("Propagates Client Header", func(t *testing.T) {
		var seen string
		h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetCorrelationID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/documents", nil)
		req.Header.Set(HeaderName, "corr-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "corr-123", seen)
		assert.Equal(t, "corr-123", rec.Header().Get(HeaderName))
	})

	t.Run("Mints When Absent", func(t *testing.T) {
		var seen string
		h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetCorrelationID(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/documents", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(HeaderName))
	})
}

func TestCorrelationContext(t *testing.T) {
	ctx := context.Background()

	_, ok := CorrelationFrom(ctx)
	assert.False(t, ok)
	assert.Equal(t, "unknown", GetCorrelationID(ctx))

	ctx = WithCorrelationID(ctx, "corr-456")
	id, ok := CorrelationFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "corr-456", id)
	assert.Equal(t, "corr-456", GetCorrelationID(ctx))
}
