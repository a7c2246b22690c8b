package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/green-credit-copilot/server/internal/workflow"
)

// handleChatStream runs one conversational turn and streams the event frames
// as SSE. The response is already framed by the multiplexer; this handler
// only moves bytes and flushes.
func (s *Server) handleChatStream(c *gin.Context) {
	var req workflow.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	req.OwnerID = owner(c)

	frames, err := s.turns.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		frame, ok := <-frames
		if !ok {
			return false
		}
		_, err := w.Write(frame)
		return err == nil
	})
}

// handleOptimize rewrites the user's raw input with the fast model. The
// optimizer fails open, so this endpoint only errors on bad requests.
func (s *Server) handleOptimize(c *gin.Context) {
	var req struct {
		Input string `json:"input"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"optimized_input": s.optimizer.Optimize(c.Request.Context(), req.Input)})
}
