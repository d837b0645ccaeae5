package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
)

func (s *Server) GetBounds(c *gin.Context) {
	bounds, err := s.analyticsSvc.Bounds(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bounds})
}

func (s *Server) GetSummary(c *gin.Context) {
	var req analyticsdomain.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.analyticsSvc.Summary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ListInactiveUsers(c *gin.Context) {
	var req analyticsdomain.QueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	users, err := s.analyticsSvc.InactiveUsers(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) ListTopUsers(c *gin.Context) {
	var req analyticsdomain.TopRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	users, err := s.analyticsSvc.TopActiveUsers(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func (s *Server) GetUserActivity(c *gin.Context) {
	var req analyticsdomain.QueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	activity, err := s.analyticsSvc.UserActivity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": activity})
}

func (s *Server) ListDepartments(c *gin.Context) {
	var req analyticsdomain.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	stats, err := s.analyticsSvc.DepartmentRollup(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
