package submission

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Project is the data collected by the agent and forwarded to the capture webhook.
type Project struct {
	Nombre         string   `json:"nombre"`
	RUT            string   `json:"rut"`
	Correo         string   `json:"correo"`
	NombreProyecto string   `json:"nombreProyecto"`
	Problema       string   `json:"problema"`
	Solucion       string   `json:"solucion"`
	Impacto        string   `json:"impacto"`
	Gerencias      []string `json:"gerencias"`
	KPIs           []string `json:"kpis"`
	Marca          *string  `json:"marca"`
}

// Envelope is the webhook request body: the project plus submission timestamps.
type Envelope struct {
	Project
	Fecha     string `json:"fecha"`
	Timestamp int64  `json:"timestamp"`
}

// fechaLayout matches the millisecond ISO-8601 timestamps the spreadsheet flow expects.
const fechaLayout = "2006-01-02T15:04:05.000Z07:00"

// DecodeProject parses submit_project tool arguments.
func DecodeProject(arguments string) (Project, error) {
	var p Project
	if err := json.Unmarshal([]byte(arguments), &p); err != nil {
		return Project{}, fmt.Errorf("decode project arguments: %w", err)
	}
	if strings.TrimSpace(p.NombreProyecto) == "" {
		return Project{}, fmt.Errorf("decode project arguments: nombreProyecto is required")
	}
	return p, nil
}

// NewEnvelope stamps a project with the submission time.
func NewEnvelope(p Project, now time.Time) Envelope {
	return Envelope{
		Project:   p,
		Fecha:     now.UTC().Format(fechaLayout),
		Timestamp: now.UnixMilli(),
	}
}

// WebhookResponse 下游 webhook 的响应体
type WebhookResponse struct {
	Success   bool   `json:"success"`
	SheetRow  any    `json:"sheetRow,omitempty"`
	EmailSent *bool  `json:"emailSent,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Outcome is what the agent and the user are told about a submission attempt.
type Outcome struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	SheetRow  any    `json:"sheetRow,omitempty"`
	EmailSent *bool  `json:"emailSent,omitempty"`
	Retryable bool   `json:"-"`
}
