package echoapi

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/cors"

	"github.com/maraakiz/portal/core"
	"github.com/maraakiz/portal/core/crm"
	"github.com/maraakiz/portal/core/facet"
	"github.com/maraakiz/portal/core/listing"
	"github.com/maraakiz/portal/core/payment"
)

type (
	// Authenticator exchanges credentials for an upstream Session.
	Authenticator interface {
		Login(ctx context.Context, email, password string) (core.Session, error)
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Catalog    *facet.Catalog
		Auth       Authenticator
		ListingSvc *listing.Service
		CRMSvc     *crm.Service
		PaymentSvc *payment.Service
		Now        func() time.Time // defaults to time.Now
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		handler  http.Handler
		http     *http.Server
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	s.http = &http.Server{
		Addr:              deps.Conf.Server.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      deps.Conf.Upstream.Timeout + 15*time.Second,
	}
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))

	v1 := s.app.Group("/v1", sessionMiddleware)
	registerAuthAPI(v1, s.deps.Auth, s.deps.Validate)
	registerMerkezAPI(v1, s.deps.ListingSvc, s.deps.Catalog, s.deps.Logger)
	registerCRMAPI(v1, s.deps.CRMSvc, s.deps.Validate, conf, s.deps.Now)
	registerPaymentAPI(v1, s.deps.PaymentSvc, s.deps.Validate)

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(s.app)
}

// Start listens until the server is shut down. Listen errors are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.handler.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" portal!")
}
