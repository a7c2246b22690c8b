package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
)

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.sessions.List(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	sess, err := s.ownedSession(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), sess.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRenameSession(c *gin.Context) {
	var body struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	sess, err := s.ownedSession(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.sessions.Rename(c.Request.Context(), sess.ID, body.Title); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "title": body.Title})
}

// ownedSession loads the addressed session and enforces ownership.
func (s *Server) ownedSession(c *gin.Context) (*model.Session, error) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != owner(c) {
		return nil, errx.PermissionDenied()
	}
	return sess, nil
}
