package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/usagelens/internal/authorization"
)

// authorize gates a route on a casbin capability. Anonymous callers that are
// denied get 401 so the UI knows to prompt for login.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	if s.authzSvc == nil {
		return ErrForbidden
	}

	subject, signedIn := s.subjectFromContext(c)
	err := s.authzSvc.Authorize(c.Request.Context(), subject, strings.TrimSpace(object), strings.TrimSpace(action))
	if err == nil {
		return nil
	}
	if errors.Is(err, authorization.ErrForbidden) && !signedIn {
		return ErrUnauthorized
	}
	return err
}

func (s *Server) subjectFromContext(c *gin.Context) (string, bool) {
	if username, ok := adminFromContext(c); ok {
		return authorization.AdminSubject(username), true
	}
	return authorization.SubjectAnonymous, false
}
