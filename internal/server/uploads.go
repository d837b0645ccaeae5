package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"github.com/smallbiznis/usagelens/pkg/db/pagination"
)

const uploadFormField = "file"

// multipart framing on top of the file itself
const multipartOverhead = 1 << 20

func (s *Server) CreateUpload(c *gin.Context) {
	limit := s.maxUpload()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ingestdomain.ErrFileTooLarge)
			return
		}
		AbortWithError(c, newValidationError(uploadFormField, "missing_file", "a file is required"))
		return
	}
	if header.Size > limit {
		AbortWithError(c, ingestdomain.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	result, err := s.ingestSvc.Ingest(c.Request.Context(), ingestdomain.Request{
		Filename: filename,
		Source:   uploaddomain.SourceCSVUpload,
		Body:     file,
	})

	s.auditUpload(c, filename, header.Size, result, err)

	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) auditUpload(c *gin.Context, filename string, size int64, result *ingestdomain.Result, err error) {
	if s.auditSvc == nil {
		return
	}

	metadata := map[string]any{
		"filename":   filename,
		"size_bytes": size,
	}
	var targetID *string
	if result != nil {
		id := result.UploadID
		targetID = &id
		metadata["status"] = string(result.Status)
		metadata["new"] = result.New
		metadata["updated"] = result.Updated
		metadata["unchanged"] = result.Unchanged
		metadata["invalid"] = len(result.Invalid)
	}
	if err != nil {
		metadata["error"] = err.Error()
	}

	_ = s.auditSvc.AuditLog(c.Request.Context(), auditdomain.ActionUploadCreate, "upload", targetID, metadata)
}

type listUploadsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  string `form:"page_size"`
	Limit     string `form:"limit"`
	Status    string `form:"status"`
}

func (s *Server) ListUploads(c *gin.Context) {
	var query listUploadsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pageSize, err := parseOptionalInt(firstNonEmpty(query.PageSize, query.Limit))
	if err != nil || pageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.uploadSvc.List(c.Request.Context(), uploaddomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  pageSize,
		},
		Status: strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Uploads, "page_info": resp.PageInfo})
}

func (s *Server) GetUpload(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	upload, err := s.uploadSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": upload})
}
