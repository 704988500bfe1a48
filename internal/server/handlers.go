package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/csrf"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/store"
)

// Handlers implements the task endpoints.
type Handlers struct {
	store  store.Store
	guard  *csrf.Guard
	logger *slog.Logger
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(st store.Store, guard *csrf.Guard, logger *slog.Logger) *Handlers {
	return &Handlers{store: st, guard: guard, logger: logger}
}

type createRequest struct {
	Title       string       `json:"title" binding:"required,max=255"`
	Description string       `json:"description" binding:"max=1000"`
	Status      model.Status `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
}

type updateRequest struct {
	Title       *string       `json:"title" binding:"omitempty,max=255"`
	Description *string       `json:"description" binding:"omitempty,max=1000"`
	Status      *model.Status `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
}

// taskSummary is the update response payload.
type taskSummary struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      model.Status `json:"status"`
}

// List handles GET /api/tasks.
func (h *Handlers) List(c *gin.Context) {
	tasks, err := h.store.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "listing tasks", err)
		return
	}
	c.JSON(http.StatusOK, api.Data(tasks))
}

// Create handles POST /api/tasks.
func (h *Handlers) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(c, api.ErrTitleRequired)
			return
		}
		badRequest(c, bindingMessage(err))
		return
	}

	in := model.NewTask{Title: req.Title, Description: req.Description, Status: req.Status}
	if err := in.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	if blankWhenStored(in.Title) {
		badRequest(c, api.ErrTitleRequired)
		return
	}

	task, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		h.internalError(c, "creating task", err)
		return
	}

	c.JSON(http.StatusCreated, api.DataMessage(task, api.MsgTaskCreated))
}

// Show handles GET /api/tasks/:id.
func (h *Handlers) Show(c *gin.Context) {
	task, err := h.store.GetByID(c.Request.Context(), taskID(c))
	if err != nil {
		h.internalError(c, "getting task", err)
		return
	}
	if task == nil {
		taskNotFound(c)
		return
	}
	c.JSON(http.StatusOK, api.Data(*task))
}

// Update handles PUT /api/tasks/:id. Fields missing from the body keep
// their current values.
func (h *Handlers) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id := taskID(c)

	current, err := h.store.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "getting task", err)
		return
	}
	if current == nil {
		taskNotFound(c)
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, bindingMessage(err))
		return
	}

	patch := model.TaskPatch{Title: req.Title, Description: req.Description, Status: req.Status}
	if err := patch.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}
	if patch.Title != nil && blankWhenStored(*patch.Title) {
		badRequest(c, api.ErrTitleEmpty)
		return
	}
	patch.Apply(current)

	updated, err := h.store.Update(ctx, *current)
	if err != nil {
		h.internalError(c, "updating task", err)
		return
	}
	if updated == nil {
		h.internalError(c, "updating task", fmt.Errorf("task %d vanished before update", id))
		return
	}

	c.JSON(http.StatusOK, api.DataMessage(taskSummary{
		ID:          updated.ID,
		Title:       updated.Title,
		Description: updated.Description,
		Status:      updated.Status,
	}, api.MsgTaskUpdated))
}

// Delete handles DELETE /api/tasks/:id.
func (h *Handlers) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := taskID(c)

	current, err := h.store.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "getting task", err)
		return
	}
	if current == nil {
		taskNotFound(c)
		return
	}

	ok, err := h.store.Delete(ctx, id)
	if err != nil {
		h.internalError(c, "deleting task", err)
		return
	}
	if !ok {
		h.internalError(c, "deleting task", fmt.Errorf("task %d vanished before delete", id))
		return
	}

	c.JSON(http.StatusOK, api.Message(api.MsgTaskDeleted))
}

// CSRFToken handles GET /api/csrf-token.
func (h *Handlers) CSRFToken(c *gin.Context) {
	tok, err := h.guard.IssueOrGetToken(c.Request.Context(), session.ID(c))
	if err != nil {
		h.internalError(c, "issuing csrf token", err)
		return
	}
	c.JSON(http.StatusOK, api.Token(tok))
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, api.Failure("database unavailable"))
		return
	}
	c.JSON(http.StatusOK, api.Message("ok"))
}

func (h *Handlers) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
	c.AbortWithStatusJSON(http.StatusInternalServerError, api.Failure(api.ErrInternal))
}

// blankWhenStored reports whether a title has no visible text left once
// markup is stripped, such as "<b></b>".
func blankWhenStored(title string) bool {
	return strings.TrimSpace(store.Sanitize(title)) == ""
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(msg))
}

func taskNotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(api.ErrTaskNotFound))
}

// bindingMessage turns a bind error into a client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return api.ErrInvalidBody
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return "status must be one of pending, in_progress, completed"
	default:
		return field + " is invalid"
	}
}
