package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
)

// Handler translates HTTP-delivered trigger events into export.Dispatcher calls.
type Handler struct {
	dispatcher export.Dispatcher
	log        *slog.Logger
}

// RegisterRoutes mounts the exporter's trigger endpoint onto the given Gin engine.
func RegisterRoutes(r *gin.Engine, dispatcher export.Dispatcher, log *slog.Logger) {
	h := &Handler{dispatcher: dispatcher, log: log}

	r.POST("/events", h.Event)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
