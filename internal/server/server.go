package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	agentdomain "github.com/mi42hq/mi42/internal/agent/domain"
	authdomain "github.com/mi42hq/mi42/internal/auth/domain"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	"github.com/mi42hq/mi42/internal/config"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	creditpackagedomain "github.com/mi42hq/mi42/internal/creditpackage/domain"
	emailverifydomain "github.com/mi42hq/mi42/internal/emailverify/domain"
	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	"github.com/mi42hq/mi42/internal/observability"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"github.com/mi42hq/mi42/internal/observability/tracing"
	registrationdomain "github.com/mi42hq/mi42/internal/registration/domain"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Config       config.Config
	ObsConfig    observability.Config
	HTTPMetrics  *metrics.HTTPMetrics
	Sessions     authdomain.Service
	Registration registrationdomain.Service
	Verification emailverifydomain.Service
	Freemium     freemiumdomain.Service
	Credits      creditdomain.Service
	Packages     creditpackagedomain.Service
	Agents       agentdomain.Service
	Briefings    briefingdomain.Service
	Audit        systemlogdomain.Service
}

// Server carries the handler dependencies. Routes live in the handle*
// methods next to their request/response types.
type Server struct {
	log          *zap.Logger
	cfg          config.Config
	sessions     authdomain.Service
	registration registrationdomain.Service
	verification emailverifydomain.Service
	freemium     freemiumdomain.Service
	credits      creditdomain.Service
	packages     creditpackagedomain.Service
	agents       agentdomain.Service
	briefings    briefingdomain.Service
	audit        systemlogdomain.Service
}

func New(p Params) *Server {
	return &Server{
		log:          p.Log.Named("http"),
		cfg:          p.Config,
		sessions:     p.Sessions,
		registration: p.Registration,
		verification: p.Verification,
		freemium:     p.Freemium,
		credits:      p.Credits,
		packages:     p.Packages,
		agents:       p.Agents,
		briefings:    p.Briefings,
		audit:        p.Audit,
	}
}

// NewEngine builds the gin engine with the standard middleware chain.
func NewEngine(p Params, srv *Server) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Debug: p.ObsConfig.Debug(),
		ErrorClassifier: func(err error) (string, string) {
			_, payload := mapError(err)
			code := payload.Type
			if len(payload.Errors) > 0 {
				code = payload.Errors[0].Code
			}
			return payload.Type, code
		},
	}))
	engine.Use(tracing.GinMiddleware())
	engine.Use(metrics.GinMiddleware(p.HTTPMetrics))
	engine.Use(ErrorHandlingMiddleware())

	srv.registerRoutes(engine)
	return engine
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", s.handleRegister)
		authGroup.POST("/login", s.handleLogin)
		authGroup.GET("/verify-email", s.handleVerifyEmail)
		authGroup.POST("/resend-verification", s.handleResendVerification)
		authGroup.GET("/check-domain", s.handleCheckDomain)
		authGroup.POST("/logout", AuthRequired(s.sessions), s.handleLogout)
		authGroup.GET("/me", AuthRequired(s.sessions), s.handleMe)
	}

	creditsGroup := api.Group("/credits")
	{
		creditsGroup.GET("/packages", s.handleListPackages)
		creditsGroup.GET("/balance", AuthRequired(s.sessions), s.handleCreditBalance)
		creditsGroup.GET("/transactions", AuthRequired(s.sessions), s.handleCreditTransactions)
		creditsGroup.POST("/purchase", AuthRequired(s.sessions), s.handlePurchasePackage)
	}

	agentsGroup := api.Group("/agents")
	{
		agentsGroup.GET("", s.handleListAgents)
		agentsGroup.POST("/execute", AuthRequired(s.sessions), s.handleExecuteAgent)
		agentsGroup.GET("/tasks", AuthRequired(s.sessions), s.handleListTasks)
		agentsGroup.GET("/tasks/:id", AuthRequired(s.sessions), s.handleGetTask)
	}

	briefingsGroup := api.Group("/briefings")
	{
		briefingsGroup.GET("", AuthRequired(s.sessions), s.handleListBriefings)
		briefingsGroup.GET("/:id", AuthRequired(s.sessions), s.handleGetBriefing)
	}

	// Separate prefix: a static /briefings/automated sibling would clash
	// with the /briefings/:id parameter route.
	automatedGroup := api.Group("/automated-briefings")
	{
		automatedGroup.GET("", s.handleListAutomated)
		automatedGroup.GET("/latest", s.handleLatestAutomated)
	}

	adminGroup := api.Group("/admin", AuthRequired(s.sessions), AdminRequired())
	{
		adminGroup.GET("/system-logs", s.handleListSystemLogs)
		adminGroup.POST("/briefings/trigger", s.handleTriggerBriefing)
	}
}

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return httpServer.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(New, NewEngine),
	fx.Invoke(Run),
)
