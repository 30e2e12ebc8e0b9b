// Package credential issues short-lived realtime client secrets while the long-lived
// provider key stays on the server.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
	"github.com/eureka-labs/eureka/backend/internal/config"
	realtimemodel "github.com/eureka-labs/eureka/backend/internal/model/realtime"
)

// MissingKeyMessage is reported when no provider key is configured.
const MissingKeyMessage = "OpenAI API key not configured. Please set OPENAI_API_KEY in your environment variables."

// Issued is one freshly minted credential. Raw is the provider payload, relayed verbatim.
type Issued struct {
	Raw   json.RawMessage
	Value string
}

// Source issues realtime credentials.
type Source interface {
	Issue(ctx context.Context) (Issued, error)
}

// Proxy exchanges the configured API key for an ephemeral client secret on every call.
type Proxy struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *logrus.Entry
}

// NewProxy builds a proxy from realtime configuration. A nil client gets a 30s timeout.
func NewProxy(cfg config.RealtimeConfig, client *http.Client, log *logrus.Entry) *Proxy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Proxy{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  client,
		log:     log.WithField("component", "credential"),
	}
}

type sessionRequest struct {
	Session sessionSpec `json:"session"`
}

type sessionSpec struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// Issue performs one upstream exchange. It never caches.
func (p *Proxy) Issue(ctx context.Context) (Issued, error) {
	const op = "credential.issue"

	if p.apiKey == "" {
		p.log.Error("OPENAI_API_KEY not configured")
		return Issued{}, apperr.Configuration(op, MissingKeyMessage)
	}

	reqBody := sessionRequest{Session: sessionSpec{Type: "realtime", Model: p.model}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}

	p.log.WithFields(logrus.Fields{
		"session_type": reqBody.Session.Type,
		"model":        reqBody.Session.Model,
	}).Info("requesting realtime client secret")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/realtime/client_secrets", bytes.NewReader(payload))
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.WithError(err).Error("client secret request failed")
		return Issued{}, apperr.Internal(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Issued{}, apperr.Internal(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.WithField("status", resp.StatusCode).Error("provider rejected client secret request")
		return Issued{}, apperr.Upstream(op, resp.StatusCode, UpstreamDetail(resp.StatusCode, body), "OpenAI API error")
	}

	var secret realtimemodel.ClientSecret
	if err := json.Unmarshal(body, &secret); err != nil {
		p.log.WithError(err).Error("client secret response is not JSON")
		return Issued{}, apperr.Internal(op, fmt.Errorf("decode response: %w", err))
	}

	p.log.WithField("token_prefix", Redact(secret.Value)).Info("client secret issued")
	return Issued{Raw: json.RawMessage(body), Value: secret.Value}, nil
}

// UpstreamDetail keeps a JSON error body verbatim and wraps anything else.
func UpstreamDetail(status int, body []byte) []byte {
	if json.Valid(body) {
		return body
	}
	wrapped, _ := json.Marshal(map[string]any{
		"error":   "OpenAI API error",
		"details": string(body),
		"status":  status,
	})
	return wrapped
}

// Redact 仅保留令牌前 10 个字符
func Redact(token string) string {
	const keep = 10
	if len(token) <= keep {
		return token + "..."
	}
	return token[:keep] + "..."
}
