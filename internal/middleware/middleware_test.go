package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "unknown", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", seen)
	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))
}

func TestGetCorrelationID_UnknownWithoutMiddleware(t *testing.T) {
	assert.Equal(t, "unknown", GetCorrelationID(context.Background()))
}

func TestAuthenticated_PassesOwnerThrough(t *testing.T) {
	var owner string
	handler := Authenticated(func(w http.ResponseWriter, r *http.Request) {
		var err error
		owner, err = Owner(r.Context())
		require.NoError(t, err)
	})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("X-User-ID", "owner-1")
	req.Header.Set("Authorization", "Bearer token")

	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", owner)
}

func TestAuthenticated_RejectsMissingHeaders(t *testing.T) {
	cases := map[string]func(*http.Request){
		"no headers": func(r *http.Request) {},
		"missing user id": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer token")
		},
		"missing bearer": func(r *http.Request) {
			r.Header.Set("X-User-ID", "owner-1")
		},
		"malformed authorization": func(r *http.Request) {
			r.Header.Set("X-User-ID", "owner-1")
			r.Header.Set("Authorization", "Basic abc")
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			handler := Authenticated(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			setup(req)

			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestOwner_MissingFromContext(t *testing.T) {
	_, err := Owner(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
