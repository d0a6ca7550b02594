package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type componentStatus struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthDetail reports per-component health: database connectivity, cache
// backend, knowledge store and model provider configuration.
func (s *Server) HealthDetail(c *gin.Context) {
	components := gin.H{}
	healthy := true

	dbStatus := componentStatus{Status: "ok"}
	start := time.Now()
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		healthy = false
		dbStatus = componentStatus{Status: "error", Detail: err.Error()}
	} else {
		dbStatus.Latency = time.Since(start).String()
	}
	components["database"] = dbStatus

	components["cache"] = componentStatus{Status: "ok", Detail: s.cfg.CacheBackend}

	knowledgeStore := componentStatus{Status: "ok", Detail: s.cfg.KnowledgeStoreURL}
	if s.cfg.KnowledgeStoreURL == "" {
		knowledgeStore = componentStatus{Status: "unconfigured"}
	}
	components["knowledge_store"] = knowledgeStore

	modelProvider := componentStatus{Status: "ok"}
	if s.cfg.GenAIAPIKey == "" {
		modelProvider = componentStatus{Status: "unconfigured", Detail: "no API key"}
	}
	components["model_provider"] = modelProvider

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"version":    s.cfg.AppVersion,
		"components": components,
	})
}
