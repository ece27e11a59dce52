package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"farewatch/internal/broker"
	"farewatch/internal/logger"
	apperrors "farewatch/pkg/errors"
)

type QueueInspector interface {
	QueueDepth(ctx context.Context, name string) (uint64, error)
}

// QueueHandler serves read-only queue introspection.
type QueueHandler struct {
	inspector    QueueInspector
	defaultQueue string
	logger       logger.Logger
}

func NewQueueHandler(inspector QueueInspector, defaultQueue string, log logger.Logger) *QueueHandler {
	return &QueueHandler{inspector: inspector, defaultQueue: defaultQueue, logger: log}
}

func (h *QueueHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/v1/queue/depth", h.GetDepth)
}

func (h *QueueHandler) GetDepth(c *gin.Context) {
	name := c.DefaultQuery("name", h.defaultQueue)

	depth, err := h.inspector.QueueDepth(c.Request.Context(), name)
	if err != nil {
		appErr := classifyQueryError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.WarnwCtx(c.Request.Context(), "Queue depth query failed", "queue", name, "error", err)
		}
		c.JSON(appErr.Status, apperrors.ToErrorResponse(appErr))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":      name,
		"queueDepth": depth,
	})
}

func classifyQueryError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, broker.ErrConnection):
		return apperrors.ErrServiceUnavailable.WithMessage("queue broker unavailable").WithCause(err)
	case errors.Is(err, broker.ErrQueueNotFound):
		return apperrors.ErrNotFound.WithMessage("queue not found").WithCause(err)
	default:
		return apperrors.ErrInternal.WithCause(err)
	}
}
