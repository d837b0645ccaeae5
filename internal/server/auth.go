package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	if !s.authsvc.Enabled() {
		AbortWithError(c, authdomain.ErrAuthDisabled)
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		AbortWithError(c, newValidationError("username", "missing_credentials", "username and password are required"))
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, result.Session)
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if ok {
		if err := s.authsvc.Logout(c.Request.Context(), token); err != nil && !errors.Is(err, authdomain.ErrSessionNotFound) {
			s.log.Warn("logout failed", zap.Error(err))
		}
	}
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

// Me reports who the caller is. Anonymous callers get the viewer role rather
// than an error.
func (s *Server) Me(c *gin.Context) {
	username, ok := adminFromContext(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"authenticated": false,
			"role":          authorization.RoleViewer,
			"login_enabled": s.authsvc.Enabled(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"username":      username,
		"role":          authorization.RoleAdmin,
		"login_enabled": true,
	})
}
