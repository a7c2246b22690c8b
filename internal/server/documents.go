package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/green-credit-copilot/server/internal/model"
)

type documentView struct {
	FileHash     string               `json:"file_hash"`
	Filename     string               `json:"filename"`
	FileType     string               `json:"file_type"`
	FileSize     int64                `json:"file_size"`
	Status       model.DocumentStatus `json:"status"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

func viewOf(doc *model.CachedDocument) documentView {
	return documentView{
		FileHash:     doc.FileHash,
		Filename:     doc.Filename,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
	}
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}

	doc, err := s.docs.Upload(c.Request.Context(), owner(c), fileHeader.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(doc))
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.docs.List(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, viewOf(doc))
	}
	c.JSON(http.StatusOK, gin.H{"documents": views})
}

// handleGetDocument returns the full cached parse, fragments included.
func (s *Server) handleGetDocument(c *gin.Context) {
	doc, err := s.docs.Get(c.Request.Context(), owner(c), c.Param("hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document":  viewOf(doc),
		"fragments": doc.Fragments,
	})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.docs.Delete(c.Request.Context(), owner(c), c.Param("hash")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
