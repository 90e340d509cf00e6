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
	"github.com/pkg/errors"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/academic"
	"github.com/trezcool/askante/core/bookshop"
	"github.com/trezcool/askante/core/events"
	"github.com/trezcool/askante/core/finance"
	"github.com/trezcool/askante/core/fundamentals"
	"github.com/trezcool/askante/core/library"
	"github.com/trezcool/askante/core/people"
	"github.com/trezcool/askante/core/report"
	"github.com/trezcool/askante/core/resource"
	"github.com/trezcool/askante/core/school"
	"github.com/trezcool/askante/core/tenant"
	"github.com/trezcool/askante/core/user"
	metricsvc "github.com/trezcool/askante/services/metrics"
)

type (
	// Services are the domain services the API exposes.
	Services struct {
		Users        user.Service
		Tenants      *tenant.Service
		School       *school.Service
		People       *people.Service
		Academic     *academic.Service
		Finance      *finance.Service
		Library      *library.Service
		Bookshop     *bookshop.Service
		Events       *events.Service
		Resources    *resource.Service
		Reports      *report.Service
		Fundamentals *fundamentals.Service
	}

	ServerDeps struct {
		Services

		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Metrics        *metricsvc.Metrics // optional
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	api := s.app.Group("/api")
	authed := api.Group("", authMiddleware(conf, s.deps.Users), scopeMiddleware())

	registerUserAPI(api, authed, s.deps)
	registerTenantAPI(api, authed, s.deps)
	registerSchoolAPI(api, authed, s.deps)
	registerPeopleAPI(api, authed, s.deps)
	registerAcademicAPI(api, authed, s.deps)
	registerFinanceAPI(api, authed, s.deps)
	registerLibraryAPI(api, authed, s.deps)
	registerBookshopAPI(api, authed, s.deps)
	registerEventsAPI(api, authed, s.deps)
	registerResourceAPI(api, authed, s.deps)
	registerReportAPI(api, authed, s.deps)
	registerFundamentalsAPI(api, authed, s.deps)
}

// Start serves until Shutdown or Close; a failure to serve is sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and the shutdown requests of the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Askante API!")
}
