package contact

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"contact-service/internal/httputil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RouteMiddleware holds per-route middleware such as rate limiters.
type RouteMiddleware struct {
	Create []gin.HandlerFunc
	Read   []gin.HandlerFunc
}

func (h *Handler) RegisterRoutes(router gin.IRouter, mw RouteMiddleware) {
	router.POST("/save_user_info", slices.Concat(mw.Create, []gin.HandlerFunc{h.SaveUserInfo})...)
	router.GET("/get_user/:id", slices.Concat(mw.Read, []gin.HandlerFunc{h.GetUser})...)
}

func (h *Handler) SaveUserInfo(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.InfoContext(c.Request.Context(), "invalid request body", "error", err)
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	contact, err := h.service.CreateContact(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateResponse{
		Message: "user info saved",
		UserID:  contact.ID,
	})
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		// ids are integers, anything else cannot name a record
		httputil.RespondWithError(c, http.StatusNotFound, ErrNotFound.Error())
		return
	}

	contact, err := h.service.GetContactByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(contact))
}

func (h *Handler) toResponse(contact *Contact) Response {
	resp := Response{
		ID:        contact.ID,
		Nickname:  contact.Nickname,
		Email:     contact.Email,
		Message:   contact.Message,
		CreatedAt: contact.CreatedAt,
	}
	if h.service.RevealsPhone() {
		resp.Phone = contact.Phone
	}
	return resp
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var verr *ValidationError
	var cerr *ConflictError
	switch {
	case errors.As(err, &verr):
		h.logger.InfoContext(ctx, "validation failed", "field", verr.Field)
		httputil.RespondWithError(c, http.StatusBadRequest, verr.Error())
	case errors.As(err, &cerr):
		h.logger.InfoContext(ctx, "duplicate contact", "field", cerr.Field)
		httputil.RespondWithError(c, http.StatusBadRequest, cerr.Error())
	case errors.Is(err, ErrNotFound):
		h.logger.InfoContext(ctx, "contact not found")
		httputil.RespondWithError(c, http.StatusNotFound, ErrNotFound.Error())
	default:
		h.logger.ErrorContext(ctx, "internal error", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
	}
}
