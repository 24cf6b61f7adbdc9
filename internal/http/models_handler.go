package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const defaultModelOwner = "aiproxy"

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// ListModels answers GET /v1/models with the configured models the caller's group can reach.
func (h *RelayHandler) ListModels(c *gin.Context) {
	configs, errList := h.models.ListModelConfigs(c.Request.Context())
	if errList != nil {
		log.WithError(errList).Error("models handler: list model configs failed")
		abortWithError(c, http.StatusInternalServerError, errTypeInternal, "Failed to list models")
		return
	}
	owners := make(map[string]string, len(configs))
	for _, cfg := range configs {
		owners[cfg.Model] = cfg.Owner
	}

	names := h.channels.VisibleModels(groupFromContext(c))
	data := make([]modelEntry, 0, len(names))
	for _, name := range names {
		owner, ok := owners[name]
		if !ok {
			continue
		}
		if owner == "" {
			owner = defaultModelOwner
		}
		data = append(data, modelEntry{ID: name, Object: "model", OwnedBy: owner})
	}
	c.JSON(http.StatusOK, modelList{Object: "list", Data: data})
}
