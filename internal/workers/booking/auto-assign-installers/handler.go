// internal/workers/booking/auto-assign-installers/handler.go
package autoassigninstallers

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
	TaskType = "auto-assign-installers"
)

// Assigner is the slice of the assignment engine this worker needs.
type Assigner interface {
	Assign(ctx context.Context, bookingID string) (*assignment.AssignResult, error)
}

type Handler struct {
	config *Config
	engine Assigner
	logger logger.Logger
}

func NewHandler(config *Config, engine Assigner, log logger.Logger) *Handler {
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
		return commonerrors.NewBookingNotFoundError(input.BookingID)
	case errors.Is(err, assignment.ErrBookingNotSchedulable):
		return commonerrors.NewBookingNotSchedulableError(err.Error())
	default:
		return commonerrors.NewAssignmentFailedError(err)
	}
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.BookingID == "" {
		return nil, commonerrors.NewBusinessRuleError("bookingId is required", "")
	}

	result, err := h.engine.Assign(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("installers assigned", map[string]interface{}{
		"bookingId":     result.BookingID,
		"assignedCount": result.AssignedCount,
		"totalNeeded":   result.TotalNeeded,
		"shortfall":     result.Shortfall,
	})

	return &Output{
		AssignResult: result,
		FullyStaffed: result.Shortfall == 0,
	}, nil
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
