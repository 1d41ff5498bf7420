package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/arsip"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/assessment"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/audit"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/consultation"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/financing"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/marketplace"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/rbac"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/umkm"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Blacklist  core.TokenBlacklist

		UserSvc         user.ServiceInterface
		RBACSvc         rbac.Service
		AuditSvc        audit.Service
		UMKMSvc         umkm.Service
		AssessmentSvc   assessment.Service
		ConsultationSvc consultation.Service
		LMSSvc          lms.Service
		ArsipSvc        arsip.Service
		MarketplaceSvc  marketplace.Service
		FinancingSvc    financing.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc, deps.RBACSvc, deps.Blacklist),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Server.Addr = conf.Server.Address
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HideBanner = conf.TestMode

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{conf.FrontendBaseURL},
		AllowCredentials: true,
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	v1.GET("/health", health)

	jwt := s.auth.jwtMiddleware()
	authed := []echo.MiddlewareFunc{jwt, s.auth.actorMiddleware}
	public := []echo.MiddlewareFunc{s.auth.optionalJWTMiddleware(), s.auth.actorMiddleware}

	registerUserAPI(v1, authed, s.deps.UserSvc, s.auth, s.deps.Validate, s.deps.Logger)
	registerRBACAPI(v1, authed, s.deps.RBACSvc, s.deps.Validate)
	registerAuditAPI(v1, authed, s.deps.AuditSvc)
	registerUMKMAPI(v1, authed, s.deps.UMKMSvc, s.deps.Validate)
	registerAssessmentAPI(v1, authed, s.deps.AssessmentSvc, s.deps.Validate)
	registerConsultationAPI(v1, authed, public, s.deps.ConsultationSvc, s.deps.Validate)
	registerLMSAPI(v1, authed, public, s.deps.LMSSvc, s.deps.Validate)
	registerArsipAPI(v1, authed, s.deps.ArsipSvc, s.deps.Validate, conf.Storage.MaxUploadSize)
	registerMarketplaceAPI(v1, authed, public, s.deps.MarketplaceSvc, s.deps.Validate)
	registerFinancingAPI(v1, authed, public, s.deps.FinancingSvc, s.deps.Validate)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Semindo API!")
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
