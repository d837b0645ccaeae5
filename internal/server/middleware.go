package server

import (
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	obsctx "github.com/smallbiznis/usagelens/internal/observability/context"
	"go.uber.org/zap"
)

const (
	contextAdminKey = "admin_username"
	contextTokenKey = "session_token"
)

// SessionContext resolves the admin cookie when present. Requests without a
// valid session continue as anonymous viewers.
func (s *Server) SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obsctx.WithClient(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())

		if token, ok := s.sessions.ReadToken(c); ok && s.authsvc != nil {
			sess, err := s.authsvc.Authenticate(ctx, token)
			if err == nil && sess != nil {
				c.Set(contextAdminKey, sess.Username)
				c.Set(contextTokenKey, token)
				ctx = obsctx.WithActor(ctx, string(auditdomain.ActorTypeAdmin), sess.Username)
			} else if err != nil {
				s.log.Debug("ignoring session cookie", zap.Error(err))
				s.sessions.Clear(c)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func adminFromContext(c *gin.Context) (string, bool) {
	value, ok := c.Get(contextAdminKey)
	if !ok {
		return "", false
	}
	username, ok := value.(string)
	return username, ok && username != ""
}

func serveIndex(c *gin.Context) {
	c.File("./public/index.html")
}
