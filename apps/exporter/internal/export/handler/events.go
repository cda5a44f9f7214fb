package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
)

// Event handles POST /events: a schedule tick or a queue delivery from the host.
func (h *Handler) Event(c *gin.Context) {
	var event export.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		var malformed export.MalformedMessageError
		var unknown export.UnknownEventError
		var language export.UnknownLanguageError
		if errors.As(err, &malformed) || errors.As(err, &unknown) || errors.As(err, &language) {
			h.log.Warn("rejected event", "source", event.Source, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to handle event", "source", event.Source, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
