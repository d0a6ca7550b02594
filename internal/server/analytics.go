package server

import (
	"net/http"
	"strings"

	analyticsdomain "github.com/edgebank/assist/internal/analytics/domain"
	"github.com/gin-gonic/gin"
)

// GetPerformance returns the daily aggregates over the last N days.
func (s *Server) GetPerformance(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), 7)
	metrics, err := s.analyticsSvc.DailyMetrics(c.Request.Context(), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if metrics == nil {
		metrics = []analyticsdomain.DailyMetric{}
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "daily": metrics})
}

func (s *Server) GetMostAsked(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), 7)
	limit := parseIntDefault(c.Query("limit"), 10)
	counts, err := s.analyticsSvc.MostAsked(c.Request.Context(), days, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if counts == nil {
		counts = []analyticsdomain.QueryCount{}
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "queries": counts})
}

func (s *Server) GetUnanswered(c *gin.Context) {
	days := parseIntDefault(c.Query("days"), 7)
	limit := parseIntDefault(c.Query("limit"), 10)
	counts, err := s.analyticsSvc.Unanswered(c.Request.Context(), days, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if counts == nil {
		counts = []analyticsdomain.QueryCount{}
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "queries": counts})
}

func (s *Server) GetConversationLog(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session"))
	if sessionID == "" {
		AbortWithError(c, newValidationError("session", "invalid_request", "session id is required"))
		return
	}

	records, err := s.analyticsSvc.BySession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if records == nil {
		records = []analyticsdomain.TurnRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "turns": records})
}
