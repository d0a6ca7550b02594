package server

import (
	"encoding/json"
	"net/http"
	"strings"

	convmemdomain "github.com/edgebank/assist/internal/convmem/domain"
	"github.com/edgebank/assist/internal/orchestrator"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

type chatRequest struct {
	Query         string `json:"query"`
	SessionID     string `json:"session_id"`
	KnowledgeBase string `json:"knowledge_base"`
	Stream        *bool  `json:"stream"`
}

type chatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	Sources   []string `json:"sources"`
}

type sourcesEnvelope struct {
	Type    string   `json:"type"`
	Sources []string `json:"sources"`
}

// Chat handles one conversational turn. Streaming responses are raw UTF-8
// text chunks terminated by a single sentinel-delimited sources payload.
func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		AbortWithError(c, newValidationError("query", "empty_query", "query is required"))
		return
	}

	turnReq := orchestrator.TurnRequest{
		SessionID:     req.SessionID,
		Query:         req.Query,
		KnowledgeBase: req.KnowledgeBase,
		ClientIP:      s.clientIP(c),
	}

	stream := req.Stream == nil || *req.Stream
	if !stream {
		result, err := s.orchestrator.HandleTurn(c.Request.Context(), turnReq, nil)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		sources := result.Sources
		if sources == nil {
			sources = []string{}
		}
		c.JSON(http.StatusOK, chatResponse{
			Response:  result.Response,
			SessionID: result.SessionID,
			Sources:   sources,
		})
		return
	}

	// Mint the session id up front so it can travel in a header; the body
	// is already committed once streaming starts.
	if turnReq.SessionID == "" {
		turnReq.SessionID = ulid.Make().String()
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Session-ID", turnReq.SessionID)
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	sink := func(event orchestrator.Event) error {
		switch event.Type {
		case orchestrator.EventText:
			if _, err := c.Writer.WriteString(event.Text); err != nil {
				return err
			}
		case orchestrator.EventSources:
			payload, err := json.Marshal(sourcesEnvelope{Type: "sources", Sources: event.Sources})
			if err != nil {
				return err
			}
			frame := orchestrator.SourcesDelimiter + string(payload) + orchestrator.SourcesDelimiter
			if _, err := c.Writer.WriteString(frame); err != nil {
				return err
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	_, _ = s.orchestrator.HandleTurn(c.Request.Context(), turnReq, sink)
}

func (s *Server) GetChatHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session"))
	if sessionID == "" {
		AbortWithError(c, newValidationError("session", "invalid_request", "session id is required"))
		return
	}

	limit := parseIntDefault(c.Query("limit"), 50)
	turns, err := s.memorySvc.Recent(c.Request.Context(), sessionID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if turns == nil {
		turns = []convmemdomain.Turn{}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"turns":      turns,
	})
}

func (s *Server) ClearChatHistory(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Param("session"))
	if sessionID == "" {
		AbortWithError(c, newValidationError("session", "invalid_request", "session id is required"))
		return
	}

	if err := s.memorySvc.Clear(c.Request.Context(), sessionID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "cleared": true})
}
