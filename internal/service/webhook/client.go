// Package webhook forwards validated project submissions to the data-capture workflow.
package webhook

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
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
)

// TechnicalFailureMessage is told to the user when the workflow could not be reached.
const TechnicalFailureMessage = "Hubo un problema técnico al conectar con el sistema. ¿Quieres que lo intente de nuevo en un momento?"

const unknownError = "Error desconocido"

// Submitter delivers a project and reports what the user should hear.
type Submitter interface {
	Submit(ctx context.Context, project submission.Project) (submission.Outcome, error)
}

// Client POSTs submissions to the configured webhook.
type Client struct {
	url    string
	secret string
	client *http.Client
	now    func() time.Time
	log    *logrus.Entry
}

// NewClient builds a client from webhook configuration.
func NewClient(cfg config.WebhookConfig, log *logrus.Entry) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
		log:    log.WithField("component", "webhook"),
	}
}

// Submit always returns an outcome the agent can relay. The error is non-nil when the
// submission failed, for status reporting.
func (c *Client) Submit(ctx context.Context, project submission.Project) (submission.Outcome, error) {
	const op = "webhook.submit"
	log := c.log.WithField("project", project.NombreProyecto)

	if c.url == "" {
		err := apperr.Configuration(op, "N8N_WEBHOOK_URL not configured")
		log.WithError(err).Error("project submission skipped")
		return technicalFailure(err), err
	}

	payload, err := json.Marshal(submission.NewEnvelope(project, c.now()))
	if err != nil {
		return technicalFailure(err), apperr.Internal(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return technicalFailure(err), apperr.Internal(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", c.secret)

	log.Info("sending project to webhook")
	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Error("webhook request failed")
		return technicalFailure(err), apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return technicalFailure(err), apperr.Transport(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := apperr.Upstream(op, resp.StatusCode, body, fmt.Sprintf("Webhook returned %d", resp.StatusCode))
		log.WithField("status", resp.StatusCode).WithField("body", string(body)).Error("webhook rejected submission")
		return technicalFailure(err), err
	}

	var result submission.WebhookResponse
	if err := json.Unmarshal(body, &result); err != nil {
		log.WithError(err).Error("webhook response is not JSON")
		return technicalFailure(err), apperr.Internal(op, err)
	}

	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = unknownError
		}
		log.WithField("reason", reason).Warn("webhook reported failure")
		return submission.Outcome{
			Success:   false,
			Error:     reason,
			Message:   fmt.Sprintf("Pucha, hubo un problema al guardar tu proyecto: %s. ¿Quieres que lo intente de nuevo?", reason),
			Retryable: true,
		}, apperr.Upstream(op, resp.StatusCode, body, reason)
	}

	log.WithField("sheet_row", result.SheetRow).Info("project saved")
	return submission.Outcome{
		Success: true,
		Message: fmt.Sprintf("¡Listo! Tu proyecto \"%s\" fue guardado exitosamente en la planilla (fila %s) y te envié un email de confirmación a %s.",
			project.NombreProyecto, sheetRowLabel(result.SheetRow), project.Correo),
		SheetRow:  result.SheetRow,
		EmailSent: result.EmailSent,
	}, nil
}

func technicalFailure(err error) submission.Outcome {
	return submission.Outcome{
		Success:   false,
		Error:     err.Error(),
		Message:   TechnicalFailureMessage,
		Retryable: true,
	}
}

// sheetRowLabel 行号缺失时显示 "nueva"
func sheetRowLabel(row any) string {
	switch v := row.(type) {
	case nil:
		return "nueva"
	case string:
		if v == "" {
			return "nueva"
		}
		return v
	case float64:
		if v == 0 {
			return "nueva"
		}
		return fmt.Sprintf("%.0f", v)
	case bool:
		if !v {
			return "nueva"
		}
	}
	return fmt.Sprint(row)
}
