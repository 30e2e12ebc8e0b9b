package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eureka-labs/eureka/backend/internal/apperr"
	realtimemodel "github.com/eureka-labs/eureka/backend/internal/model/realtime"
)

// ErrNoToken is returned when a credential payload carries no token value.
var ErrNoToken = errors.New("credential payload has no token value")

// Remote asks a deployed backend for credentials through its /api/session route.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote targets serverURL, e.g. "http://localhost:8080".
func NewRemote(serverURL string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Remote{
		endpoint: strings.TrimRight(serverURL, "/") + "/api/session",
		client:   client,
	}
}

func (r *Remote) Issue(ctx context.Context) (Issued, error) {
	const op = "credential.remote"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Issued{}, apperr.Internal(op, err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &envelope)
		if strings.HasPrefix(envelope.Error, "OpenAI API key not configured") {
			return Issued{}, apperr.Configuration(op, envelope.Error)
		}
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("server answered %d", resp.StatusCode)
		}
		return Issued{}, apperr.Upstream(op, resp.StatusCode, body, msg)
	}

	var secret realtimemodel.ClientSecret
	if err := json.Unmarshal(body, &secret); err != nil {
		return Issued{}, apperr.Internal(op, err)
	}
	if secret.Value == "" {
		return Issued{}, apperr.Internal(op, ErrNoToken)
	}
	return Issued{Raw: json.RawMessage(body), Value: secret.Value}, nil
}
