package health

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contactly/core/internal/pkg/cache"
	"github.com/contactly/core/internal/pkg/response"
)

// Handler reports liveness of the process and its two backing stores.
type Handler struct {
	client *mongo.Client
	rc     *cache.Redis
}

func NewHandler(client *mongo.Client, rc *cache.Redis) *Handler {
	return &Handler{client: client, rc: rc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", h.ping)
	rg.GET("/health", h.health)
}

func (h *Handler) ping(c *gin.Context) {
	response.OK(c, gin.H{"message": "pong"})
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{"mongo": "ok", "redis": "ok"}
	healthy := true

	if err := h.client.Ping(ctx, nil); err != nil {
		status["mongo"] = err.Error()
		healthy = false
	}
	if err := h.rc.Ping(ctx); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		c.JSON(503, status)
		return
	}
	response.OK(c, status)
}
