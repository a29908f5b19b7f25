// Package web implements the HTTP service of the identity bridge.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	accesslog "github.com/stephane-berube/keycloak/internal/logger/adapter/fiber"
	localemappingadmin "github.com/stephane-berube/keycloak/internal/web/handler/admin/localemapping"
	roleruleadmin "github.com/stephane-berube/keycloak/internal/web/handler/admin/rolerule"
	oidchandler "github.com/stephane-berube/keycloak/internal/web/handler/auth/oidc"
	"github.com/stephane-berube/keycloak/internal/web/handler/login"
	"github.com/stephane-berube/keycloak/internal/web/handler/logout"
	"github.com/stephane-berube/keycloak/internal/web/handler/whoami"
	authmiddleware "github.com/stephane-berube/keycloak/internal/web/middleware/auth"
)

// CheckAlivePath is the liveness probe path used by load balancers.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through /shutdown
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	// access logging middleware
	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	// init web service
	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		authService: auth.NewService(db),
	}

	service.alive.Store(true)

	app.Get(CheckAlivePath, service.checkAlive)

	// session auth middleware
	app.Use(authmiddleware.Middleware)

	// init handlers (they register their own routes)
	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	if err := logout.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init logout handler")
	}

	if err := oidchandler.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init oidc handler")
	}

	if err := whoami.Handler.Init(app, cfg, db, service.authService); err != nil {
		log.Fatal().Err(err).Msg("failed to init whoami handler")
	}

	if err := roleruleadmin.Handler.Init(app, cfg, db, service.authService); err != nil {
		log.Fatal().Err(err).Msg("failed to init role rule handler")
	}

	if err := localemappingadmin.Handler.Init(app, cfg, db, service.authService); err != nil {
		log.Fatal().Err(err).Msg("failed to init locale mapping handler")
	}

	// redirect root to the user profile
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(whoami.Path)
	})

	return service
}

// checkAlive reports service liveness for load balancers. It flips to 503
// during graceful shutdown so the pod drains before the listener stops.
func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("ok")
}
