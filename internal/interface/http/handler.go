package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
	apperrors "github.com/yanqian/pollenpilot/pkg/errors"
)

// Handler wires the HTTP transport to the chat service.
type Handler struct {
	chatSvc chat.Service
	logger  *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(chatSvc chat.Service, logger *slog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger.With("component", "http.handler"),
	}
}

// ListScenarios returns the scenario catalog.
func (h *Handler) ListScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, h.chatSvc.Scenarios())
}

// ListFlows returns the supported conversation flows.
func (h *Handler) ListFlows(c *gin.Context) {
	c.JSON(http.StatusOK, h.chatSvc.Flows())
}

// CreateSession starts a new conversation.
func (h *Handler) CreateSession(c *gin.Context) {
	var req chat.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	session, err := h.chatSvc.CreateSession(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetSession returns a stored conversation.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.chatSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// SendMessage runs one conversation turn.
func (h *Handler) SendMessage(c *gin.Context) {
	var req chat.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	resp, err := h.chatSvc.SendMessage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RecordRating stores feedback on an assistant message.
func (h *Handler) RecordRating(c *gin.Context) {
	var req chat.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	rating, err := h.chatSvc.RecordRating(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}

	c.JSON(http.StatusOK, rating)
}

// ExportSession downloads the conversation as a JSON attachment.
func (h *Handler) ExportSession(c *gin.Context) {
	id := c.Param("id")
	export, err := h.chatSvc.Export(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chat.ExportFilename(export.SessionID)))
	c.JSON(http.StatusOK, export)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func domainError(err error) *HTTPError {
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		return NewHTTPError(http.StatusNotFound, apperrors.CodeNotFound, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeLLM):
		return NewHTTPError(http.StatusBadGateway, apperrors.CodeLLM, errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeStorage):
		return NewHTTPError(http.StatusInternalServerError, apperrors.CodeStorage, errMessage(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
