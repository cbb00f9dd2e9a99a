// internal/workers/booking/confirm-assignment/handler.go
package confirmassignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/026iFly/foam-sub000/internal/assignment"
	commonerrors "github.com/026iFly/foam-sub000/internal/common/errors"
	"github.com/026iFly/foam-sub000/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "confirm-assignment"

	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// Confirmer is the slice of the assignment engine this worker needs.
type Confirmer interface {
	Accept(ctx context.Context, assignmentID string) (*assignment.ConfirmResult, error)
	Decline(ctx context.Context, assignmentID string) (*assignment.ConfirmResult, error)
	ResolveToken(ctx context.Context, token string) (*assignment.Assignment, error)
}

type Handler struct {
	config *Config
	engine Confirmer
	logger logger.Logger
}

func NewHandler(config *Config, engine Confirmer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, &commonerrors.BPMNError{
			Code:    "PARSE_ERROR",
			Message: fmt.Sprintf("parse input: %v", err),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, commonerrors.ConvertToBPMNError(standardError(err, &input)))
		return
	}

	h.completeJob(client, job, output)
}

// standardError maps execute failures onto the shared taxonomy so the
// process model gets stable error codes and retry hints.
func standardError(err error, input *Input) *commonerrors.StandardError {
	var stdErr *commonerrors.StandardError
	switch {
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, sql.ErrNoRows):
		ref := fmt.Sprintf("assignmentId: %s", input.AssignmentID)
		if input.AssignmentID == "" {
			ref = "token did not match any assignment"
		}
		return commonerrors.NewAssignmentNotFoundError(ref)
	default:
		return commonerrors.NewConfirmationFailedError(err)
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Action != ActionAccept && input.Action != ActionDecline {
		return nil, commonerrors.NewBusinessRuleError(
			"Unknown confirmation action", fmt.Sprintf("action: %q", input.Action))
	}

	assignmentID := input.AssignmentID
	if assignmentID == "" {
		if input.Token == "" {
			return nil, commonerrors.NewBusinessRuleError(
				"Either assignmentId or token is required", "")
		}
		a, err := h.engine.ResolveToken(ctx, input.Token)
		if err != nil {
			return nil, err
		}
		assignmentID = a.ID
	}

	var (
		result *assignment.ConfirmResult
		err    error
	)
	if input.Action == ActionAccept {
		result, err = h.engine.Accept(ctx, assignmentID)
	} else {
		result, err = h.engine.Decline(ctx, assignmentID)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("assignment resolved", map[string]interface{}{
		"assignmentId":     result.AssignmentID,
		"action":           input.Action,
		"channel":          input.Channel,
		"status":           result.Status,
		"alreadyResolved":  result.AlreadyResolved,
		"bookingConfirmed": result.BookingConfirmed,
	})

	return &Output{ConfirmResult: result}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, bpmnErr *commonerrors.BPMNError) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retryable":    bpmnErr.Retryable,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
