package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentModel "github.com/eureka-labs/eureka/backend/internal/model/agent"
	credentialService "github.com/eureka-labs/eureka/backend/internal/service/credential"
	sessionService "github.com/eureka-labs/eureka/backend/internal/service/session"
)

type stubSource struct{}

func (stubSource) Issue(context.Context) (credentialService.Issued, error) {
	return credentialService.Issued{
		Raw:   json.RawMessage(`{"value":"ek_test"}`),
		Value: "ek_test",
	}, nil
}

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Agents:      agentModel.NewMemoryStore(agentModel.Seed()),
		Credentials: stubSource{},
		Registry:    sessionService.NewRegistry(),
		StaticDir:   staticDir,
	})
}

func TestHealth(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(t, "").ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Server is running"}`, resp.Body.String())
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutesMounted(t *testing.T) {
	r := newTestRouter(t, "")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"value":"ek_test"}`, resp.Body.String())

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown/transcript", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('eureka')"), 0o644))

	resp := httptest.NewRecorder()
	newTestRouter(t, dir).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/app.js", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "eureka")
}

func TestMissingStaticDirIsIgnored(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(t, filepath.Join(t.TempDir(), "absent")).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/app.js", nil))

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
