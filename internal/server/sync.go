package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
)

// SyncCursor pulls the vendor daily usage for a window and ingests it like an
// upload. An empty body syncs from the configured start date until today.
func (s *Server) SyncCursor(c *gin.Context) {
	var req cursorapi.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.syncer.Sync(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
