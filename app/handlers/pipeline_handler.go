// Package handlers contains HTTP request handlers and presentation layer
// logic for the submission API.
package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/oohgrid/billboard-etl/app/dto"
	"github.com/oohgrid/billboard-etl/app/middleware"
	businessflow "github.com/oohgrid/billboard-etl/business_flow"
	"github.com/oohgrid/billboard-etl/models"
)

type PipelineHandlerInterface interface {
	SubmitRun(c fiber.Ctx) error
	GetRunStatus(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
	RegisterCategory(c fiber.Ctx) error
}

// PipelineHandler exposes pipeline runs and category registration over HTTP.
type PipelineHandler struct {
	flow      businessflow.ETLFlow
	validator *validator.Validate
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(flow businessflow.ETLFlow) *PipelineHandler {
	return &PipelineHandler{flow: flow, validator: validator.New()}
}

func (h *PipelineHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PipelineHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SubmitRun starts a pipeline run over an already-uploaded vendor file and
// blocks until it finishes. Long inputs are expected; the handler context
// allows for a full profile push.
func (h *PipelineHandler) SubmitRun(c fiber.Ctx) error {
	var req dto.SubmitRunRequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_BODY", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", validationDetails(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
	defer cancel()

	res, err := h.flow.ExecuteRun(ctx, &req)
	if err != nil {
		if businessflow.IsSourceFileMissing(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Source file does not exist", "SOURCE_FILE_MISSING", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Pipeline run failed", "RUN_FAILED", err.Error())
	}

	middleware.RecordRun(res.Status, res.Report.InputRows,
		res.Report.Validation.DroppedImages, res.Report.Validation.DroppedCoords)
	if res.Push != nil {
		middleware.RecordPushErrors(res.Push.TotalErrors)
	}

	if res.Status == models.RunStatusRejected {
		return h.SuccessResponse(c, fiber.StatusUnprocessableEntity, "Batch rejected", res)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pipeline run completed", res)
}

// GetRunStatus reports a run's progress and final counters.
func (h *PipelineHandler) GetRunStatus(c fiber.Ctx) error {
	runID := c.Params("run_id")
	if runID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "run_id is required", "MISSING_RUN_ID", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.flow.RunStatus(ctx, runID)
	if err != nil {
		if businessflow.IsRunNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Pipeline run not found", "RUN_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get run status", "STATUS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Run status retrieved", res)
}

// ListRuns returns the most recent runs.
func (h *PipelineHandler) ListRuns(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := h.flow.ListRuns(ctx, limit)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list runs", "LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Runs retrieved", fiber.Map{"runs": items})
}

// RegisterCategory adds a format-type to category-UUID mapping.
func (h *PipelineHandler) RegisterCategory(c fiber.Ctx) error {
	var req dto.RegisterCategoryRequest
	if err := c.Bind().Body(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_BODY", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_FAILED", validationDetails(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := h.flow.RegisterCategory(ctx, &req)
	if err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) && be.Code == "CATEGORY_ID_INVALID" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Category id is not a valid uuid", be.Code, nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register category", "CATEGORY_REGISTER_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Category registered", res)
}

// validationDetails renders field errors into API-friendly messages.
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "uuid4":
		return err.Field() + " must be a valid uuid"
	default:
		return err.Field() + " is invalid"
	}
}
