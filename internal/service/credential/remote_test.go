package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
)

func TestRemoteIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/session", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"value":"ek_remote"}`))
	}))
	defer srv.Close()

	issued, err := NewRemote(srv.URL+"/", nil).Issue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ek_remote", issued.Value)
}

func TestRemoteIssueConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + MissingKeyMessage + `"}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, nil).Issue(context.Background())

	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestRemoteIssueUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API key"}}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, nil).Issue(context.Background())

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindUpstream, appErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
}

func TestRemoteIssueMissingValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, nil).Issue(context.Background())

	assert.ErrorIs(t, err, ErrNoToken)
}
