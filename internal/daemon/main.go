// Package daemon wires the database, session store and web service together.
package daemon

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage"
	sessionmemory "github.com/gofiber/storage/memory/v2"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/config"
	"github.com/stephane-berube/keycloak/internal/db/dsn"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/web"
	"github.com/stephane-berube/keycloak/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg *config.Config
	// webService is held by pointer: WaitShutdown and the liveness handler
	// must observe the same alive flag.
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(openDialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
		return nil
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.RoleRule{},
		&models.LocaleMapping{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	seed(cfg, db)

	session.Init(openSessionStorage(cfg))

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db),
	}
}

// openDialector selects the gorm driver for the configured database.
func openDialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.Driver {
	case "mysql":
		return gormmysql.Open(dsn.Create(cfg))
	case "postgres":
		return gormpostgres.Open(dsn.Create(cfg))
	default: // sqlite
		return sqlite.Open(dsn.Create(cfg))
	}
}

// openSessionStorage selects the fiber session storage backend. Sessions
// live next to the application data except for sqlite, where the in-memory
// store avoids write contention on the single database file.
func openSessionStorage(cfg *config.Config) storage.Storage {
	switch cfg.DB.Driver {
	case "mysql":
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	case "postgres":
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	default: // sqlite
		return sessionmemory.New()
	}
}
