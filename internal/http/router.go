// Package http exposes the gateway's HTTP surface.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mono-ai/aiproxy/internal/access"
	"github.com/mono-ai/aiproxy/internal/models"
)

// relayRoutes maps relayed endpoints to their mode.
var relayRoutes = []struct {
	path string
	mode models.Mode
}{
	{"/v1/chat/completions", models.ModeChatCompletions},
	{"/v1/completions", models.ModeCompletions},
	{"/v1/embeddings", models.ModeEmbeddings},
	{"/v1/moderations", models.ModeModerations},
	{"/v1/images/generations", models.ModeImagesGenerations},
	{"/v1/edits", models.ModeEdits},
	{"/v1/audio/speech", models.ModeAudioSpeech},
	{"/v1/rerank", models.ModeRerank},
	{"/v1/messages", models.ModeAnthropic},
	{"/v1/responses", models.ModeResponses},
}

// RegisterRoutes mounts the health check and the authenticated relay endpoints.
func RegisterRoutes(engine *gin.Engine, auth *access.Authenticator, handler *RelayHandler) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/")
	api.Use(AccessAuthMiddleware(auth))
	api.GET("/v1/models", handler.ListModels)
	for _, route := range relayRoutes {
		api.POST(route.path, handler.Handle(route.mode))
	}
}
