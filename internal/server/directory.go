package server

import (
	"net/http"
	"strings"

	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	"github.com/gin-gonic/gin"
)

// SearchDirectory exposes the staged employee lookup.
func (s *Server) SearchDirectory(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		AbortWithError(c, newValidationError("q", "empty_query", "q is required"))
		return
	}

	limit := parseIntDefault(c.Query("limit"), 0)
	hits, err := s.directorySvc.Search(c.Request.Context(), query, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if hits == nil {
		hits = []directorydomain.Hit{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "hits": hits})
}
