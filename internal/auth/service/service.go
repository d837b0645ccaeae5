package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	"github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/auth/password"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"github.com/smallbiznis/usagelens/internal/clock"
	"github.com/smallbiznis/usagelens/internal/config"
	obsctx "github.com/smallbiznis/usagelens/internal/observability/context"
	"github.com/smallbiznis/usagelens/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSessionTTL = 8 * time.Hour

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Store   domain.SessionStore
	Limiter ratelimit.Limiter   `optional:"true"`
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	admin   config.AdminConfig
	ttl     time.Duration
	clock   clock.Clock
	store   domain.SessionStore
	limiter ratelimit.Limiter
	audit   auditdomain.Service
}

func New(p Params) domain.Service {
	ttl := time.Duration(p.Config.SessionTTLMinute) * time.Minute
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if p.Config.Admin.Enabled() && p.Config.Admin.PasswordHash == "" {
		p.Log.Warn("admin password is configured in plaintext; prefer ADMIN_PASSWORD_HASH")
	}
	return &Service{
		log:     p.Log.Named("auth.service"),
		admin:   p.Config.Admin,
		ttl:     ttl,
		clock:   p.Clock,
		store:   p.Store,
		limiter: p.Limiter,
		audit:   p.Audit,
	}
}

func (s *Service) Enabled() bool {
	return s.admin.Enabled()
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	if !s.Enabled() {
		return nil, domain.ErrAuthDisabled
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "login:"+strings.TrimSpace(req.IPAddress))
		if err != nil {
			s.log.Warn("login limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, domain.ErrTooManyAttempts
		}
	}

	username := strings.TrimSpace(req.Username)
	if !s.checkCredentials(username, req.Password) {
		s.recordAudit(ctx, auditdomain.ActionLoginFailed, username, nil)
		return nil, domain.ErrInvalidCredentials
	}

	rawToken := uuid.NewString()
	now := s.clock.Now().UTC()
	sess := domain.Session{
		Username:  s.admin.Username,
		IPAddress: strings.TrimSpace(req.IPAddress),
		UserAgent: strings.TrimSpace(req.UserAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, hashToken(rawToken), sess, s.ttl); err != nil {
		return nil, err
	}

	ctx = obsctx.WithActor(ctx, string(auditdomain.ActorTypeAdmin), sess.Username)
	s.recordAudit(ctx, auditdomain.ActionLogin, sess.Username, nil)
	s.log.Info("admin signed in", zap.String("ip", sess.IPAddress))

	return &domain.LoginResult{
		Session:   viewOf(sess),
		RawToken:  rawToken,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.ErrSessionNotFound
	}
	hash := hashToken(rawToken)
	sess, err := s.store.Get(ctx, hash)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	if err := s.store.Delete(ctx, hash); err != nil {
		return err
	}
	if sess != nil {
		ctx = obsctx.WithActor(ctx, string(auditdomain.ActorTypeAdmin), sess.Username)
		s.recordAudit(ctx, auditdomain.ActionLogout, sess.Username, nil)
	}
	return nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.clock.Now()) {
		_ = s.store.Delete(ctx, hashToken(rawToken))
		return nil, domain.ErrSessionExpired
	}
	return sess, nil
}

// checkCredentials always evaluates both the username and the password so the
// response time does not reveal which one was wrong.
func (s *Service) checkCredentials(username, secret string) bool {
	userOK := password.Equal(username, s.admin.Username)
	var passOK bool
	switch {
	case s.admin.PasswordHash != "":
		passOK = password.Verify(secret, s.admin.PasswordHash)
	case password.LooksHashed(s.admin.Password):
		passOK = password.Verify(secret, s.admin.Password)
	default:
		passOK = password.Equal(secret, s.admin.Password)
	}
	return userOK && passOK && secret != ""
}

func (s *Service) recordAudit(ctx context.Context, action, username string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	if username != "" {
		metadata["username"] = username
	}
	if err := s.audit.AuditLog(ctx, action, "admin", nil, metadata); err != nil {
		s.log.Warn("failed to record auth audit", zap.String("action", action), zap.Error(err))
	}
}

func viewOf(sess domain.Session) domain.SessionView {
	return domain.SessionView{
		Username:  sess.Username,
		Role:      authorization.RoleAdmin,
		ExpiresAt: sess.ExpiresAt,
	}
}

// View exposes a stored session to clients.
func View(sess domain.Session) domain.SessionView {
	return viewOf(sess)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
