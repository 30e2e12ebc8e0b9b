package session

import (
	"context"
	"encoding/json"

	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	"github.com/eureka-labs/eureka/backend/internal/model/conversation"
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
	"github.com/eureka-labs/eureka/backend/internal/service/realtime"
)

const unknownToolResult = `{"success":false,"error":"unknown tool"}`

// handleToolCall runs a function call requested by the model and answers it on the
// stream that asked.
func (c *Controller) handleToolCall(gen uint64, call realtime.ToolCall) {
	c.mu.Lock()
	if c.gen != gen || c.stream == nil {
		c.mu.Unlock()
		return
	}
	stream, ctx, log := c.stream, c.sessionCtx, c.sessionLog.WithField("tool", call.Name)
	c.mu.Unlock()

	log.Info("tool call received")

	output := unknownToolResult
	switch call.Name {
	case agent.SubmitProjectTool:
		output = c.submitFromTool(ctx, gen, call.Arguments)
	default:
		log.Warn("model requested an unknown tool")
	}

	if err := stream.SendToolResult(ctx, call.CallID, output); err != nil {
		log.WithError(err).Warn("sending tool result failed")
	}
}

// submitFromTool answers the model in every case. The outcome is recorded only if the
// session that asked is still current.
func (c *Controller) submitFromTool(ctx context.Context, gen uint64, arguments string) string {
	project, err := submission.DecodeProject(arguments)
	if err != nil {
		c.sessionLog.WithError(err).Warn("invalid submit_project arguments")
		return encodeOutcome(submission.Outcome{Success: false, Error: err.Error()})
	}

	outcome, err := c.webhook.Submit(ctx, project)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.log.WithField("project", project.NombreProyecto).Info("submission finished after the session ended")
		return encodeOutcome(outcome)
	}
	c.recordSubmissionLocked(project, outcome, err)
	return encodeOutcome(outcome)
}

// RetrySubmission re-sends the last failed project payload unchanged.
func (c *Controller) RetrySubmission(ctx context.Context) (submission.Outcome, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return submission.Outcome{}, ErrNoPendingSubmission
	}
	if c.retrying {
		c.mu.Unlock()
		return submission.Outcome{}, ErrInvalidState
	}
	project := *c.pending
	c.retrying = true
	c.logEventLocked("Reintentando guardar el proyecto " + project.NombreProyecto)
	c.publishControlsLocked()
	c.mu.Unlock()

	outcome, err := c.webhook.Submit(ctx, project)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.retrying = false
	c.recordSubmissionLocked(project, outcome, err)
	return outcome, err
}

// PendingSubmission returns the project awaiting retry, if any.
func (c *Controller) PendingSubmission() (submission.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return submission.Project{}, false
	}
	return *c.pending, true
}

func (c *Controller) recordSubmissionLocked(project submission.Project, outcome submission.Outcome, err error) {
	if err != nil || !outcome.Success {
		log := c.sessionLog.WithField("project", project.NombreProyecto)
		if err != nil {
			log = log.WithError(err)
		}
		log.Error("project submission failed")
		p := project
		c.pending = &p
		c.setStatusLocked(outcome.Message, conversation.StatusError)
		c.logEventLocked("Error al guardar el proyecto: " + outcome.Error)
	} else {
		c.pending = nil
		c.setStatusLocked(outcome.Message, conversation.StatusSuccess)
		c.logEventLocked("Proyecto guardado: " + project.NombreProyecto)
	}
	c.publishControlsLocked()
}

func encodeOutcome(outcome submission.Outcome) string {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return `{"success":false,"error":"internal error"}`
	}
	return string(raw)
}
