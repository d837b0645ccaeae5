package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	analyticsdomain "github.com/smallbiznis/usagelens/internal/analytics/domain"
	auditdomain "github.com/smallbiznis/usagelens/internal/audit/domain"
	authdomain "github.com/smallbiznis/usagelens/internal/auth/domain"
	"github.com/smallbiznis/usagelens/internal/auth/session"
	"github.com/smallbiznis/usagelens/internal/authorization"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/cursorapi"
	ingestdomain "github.com/smallbiznis/usagelens/internal/ingest/domain"
	managerdomain "github.com/smallbiznis/usagelens/internal/manager/domain"
	"github.com/smallbiznis/usagelens/internal/observability"
	obslogger "github.com/smallbiznis/usagelens/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/usagelens/internal/observability/metrics"
	obstracing "github.com/smallbiznis/usagelens/internal/observability/tracing"
	"github.com/smallbiznis/usagelens/internal/report"
	uploaddomain "github.com/smallbiznis/usagelens/internal/upload/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(func(s *cursorapi.Syncer) Syncer { return s }),
	fx.Provide(func(g *report.Generator) ReportGenerator { return g }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Syncer pulls vendor usage into the store.
type Syncer interface {
	Sync(ctx context.Context, req cursorapi.SyncRequest) (*ingestdomain.Result, error)
}

// ReportGenerator renders the printable summary.
type ReportGenerator interface {
	Summary(ctx context.Context, req analyticsdomain.RangeRequest) ([]byte, string, error)
}

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if obsCfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(log, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authsvc      authdomain.Service
	sessions     *session.Manager
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	ingestSvc    ingestdomain.Service
	uploadSvc    uploaddomain.Service
	managerSvc   managerdomain.Service
	analyticsSvc analyticsdomain.Service
	reports      ReportGenerator
	syncer       Syncer
	maxUpload    func() int64
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Settings     *config.SettingsHolder
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	IngestSvc    ingestdomain.Service
	UploadSvc    uploaddomain.Service
	ManagerSvc   managerdomain.Service
	AnalyticsSvc analyticsdomain.Service
	Reports      ReportGenerator
	Syncer       Syncer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		ingestSvc:    p.IngestSvc,
		uploadSvc:    p.UploadSvc,
		managerSvc:   p.ManagerSvc,
		analyticsSvc: p.AnalyticsSvc,
		reports:      p.Reports,
		syncer:       p.Syncer,
		maxUpload:    uploadLimit(p.Settings),
	}

	svc.engine.Use(svc.SessionContext())

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Uploads --------
	api.POST("/uploads", s.authorize(authorization.ObjectUpload, authorization.ActionUploadCreate), s.CreateUpload)
	api.GET("/uploads", s.authorize(authorization.ObjectUpload, authorization.ActionUploadView), s.ListUploads)
	api.GET("/uploads/:id", s.authorize(authorization.ObjectUpload, authorization.ActionUploadView), s.GetUpload)

	// -------- Analytics --------
	analytics := api.Group("/analytics", s.authorize(authorization.ObjectAnalytics, authorization.ActionAnalyticsView))
	{
		analytics.GET("/bounds", s.GetBounds)
		analytics.GET("/summary", s.GetSummary)
		analytics.GET("/inactive", s.ListInactiveUsers)
		analytics.GET("/top", s.ListTopUsers)
		analytics.GET("/activity", s.GetUserActivity)
		analytics.GET("/departments", s.ListDepartments)
	}

	// -------- Reports --------
	api.GET("/reports/summary.pdf", s.authorize(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.DownloadSummaryReport)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	// -------- Managers --------
	admin.GET("/managers", s.authorize(authorization.ObjectManager, authorization.ActionManagerView), s.ListManagers)
	admin.GET("/managers/:email", s.authorize(authorization.ObjectManager, authorization.ActionManagerView), s.GetManager)
	admin.PUT("/managers/:email", s.authorize(authorization.ObjectManager, authorization.ActionManagerWrite), s.UpsertManager)
	admin.DELETE("/managers/:email", s.authorize(authorization.ObjectManager, authorization.ActionManagerWrite), s.DeleteManager)
	admin.POST("/managers/import", s.authorize(authorization.ObjectManager, authorization.ActionManagerWrite), s.ImportManagers)

	// -------- Vendor sync --------
	admin.POST("/sync/cursor", s.authorize(authorization.ObjectSync, authorization.ActionSyncRun), s.SyncCursor)

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		if isAPIPath(c.Request.URL.Path) {
			AbortWithError(c, ErrNotFound)
			return
		}

		// static assets (vite)
		if fileExists("./public", c.Request.URL.Path) {
			c.File("./public" + c.Request.URL.Path)
			return
		}
		if !fileExists("./public", "/index.html") {
			AbortWithError(c, ErrNotFound)
			return
		}

		// SPA fallback
		serveIndex(c)
	})
}

func isAPIPath(p string) bool {
	for _, prefix := range []string{"/api/", "/admin/", "/auth/"} {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func fileExists(publicDir, reqPath string) bool {
	clean := filepath.Clean(reqPath)

	// prevent path traversal
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}

	fullPath := filepath.Join(publicDir, clean)

	info, err := os.Stat(fullPath)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

func uploadLimit(settings *config.SettingsHolder) func() int64 {
	return func() int64 {
		if settings == nil {
			return config.DefaultSettings().Ingest.MaxUploadBytes()
		}
		return settings.Get().Ingest.MaxUploadBytes()
	}
}
