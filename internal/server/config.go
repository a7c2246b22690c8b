package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/green-credit-copilot/server/internal/model"
)

func (s *Server) handleListTools(c *gin.Context) {
	defs, err := s.config.ListTools(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": defs})
}

func (s *Server) handleCreateTool(c *gin.Context) {
	var def model.ToolDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool definition"})
		return
	}
	if msg := validateToolDefinition(&def); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	def.ID = ""
	def.OwnerID = owner(c)
	if err := s.config.CreateTool(c.Request.Context(), &def); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (s *Server) handleUpdateTool(c *gin.Context) {
	var def model.ToolDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool definition"})
		return
	}
	if msg := validateToolDefinition(&def); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	def.ID = c.Param("id")
	if err := s.config.UpdateTool(c.Request.Context(), owner(c), &def); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleDeleteTool(c *gin.Context) {
	if err := s.config.DeleteTool(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListServers(c *gin.Context) {
	defs, err := s.config.ListServers(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"servers": defs})
}

func (s *Server) handleCreateServer(c *gin.Context) {
	var def model.ServerDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server definition"})
		return
	}
	if def.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	def.ID = ""
	def.OwnerID = owner(c)
	if err := s.config.CreateServer(c.Request.Context(), &def); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (s *Server) handleUpdateServer(c *gin.Context) {
	var def model.ServerDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server definition"})
		return
	}
	def.ID = c.Param("id")
	if err := s.config.UpdateServer(c.Request.Context(), owner(c), &def); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleDeleteServer(c *gin.Context) {
	if err := s.config.DeleteServer(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// validateToolDefinition rejects definitions the registry would silently
// skip, so misconfiguration surfaces at write time instead of on a turn.
func validateToolDefinition(def *model.ToolDefinition) string {
	if def.Name == "" {
		return "name is required"
	}
	if def.URL == "" {
		return "url is required"
	}
	if _, err := url.ParseRequestURI(def.URL); err != nil {
		return "url is not valid"
	}
	switch strings.ToUpper(def.Method) {
	case "", "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return "method is not supported"
	}
	return ""
}
