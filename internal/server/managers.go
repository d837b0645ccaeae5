package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
)

const rosterFormField = "file"

func (s *Server) ListManagers(c *gin.Context) {
	var req managerdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.managerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Managers})
}

func (s *Server) GetManager(c *gin.Context) {
	record, err := s.managerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("email")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) UpsertManager(c *gin.Context) {
	var req managerdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.managerSvc.Upsert(c.Request.Context(), strings.TrimSpace(c.Param("email")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) DeleteManager(c *gin.Context) {
	if err := s.managerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("email"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ImportManagers(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload()+multipartOverhead)

	header, err := c.FormFile(rosterFormField)
	if err != nil {
		AbortWithError(c, newValidationError(rosterFormField, "missing_file", "a roster file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	result, err := s.managerSvc.Import(c.Request.Context(), file)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
