package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	sessionmemory "github.com/gofiber/storage/memory/v2"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/config"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/web/session"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.RoleRule{},
		&models.LocaleMapping{},
	)
	if err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	session.Init(sessionmemory.New())

	cfg := &config.Config{
		Title: "test",
		Webserver: config.Webserver{
			URL:     "http://localhost:8080",
			Port:    8080,
			Session: config.Session{ExpiryTime: time.Minute},
		},
		Auth: config.Auth{
			LocalDB: config.LocalDBAuth{Enabled: true},
		},
	}

	return New(cfg, db)
}

func checkAliveStatus(t *testing.T, svc *Service) int {
	t.Helper()

	resp, err := svc.App.Test(httptest.NewRequest(http.MethodGet, CheckAlivePath, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	return resp.StatusCode
}

func TestCheckAliveDrainsOnShutdown(t *testing.T) {
	svc := newTestService(t)

	if status := checkAliveStatus(t, svc); status != http.StatusOK {
		t.Fatalf("expected 200 while alive, got %d", status)
	}

	// the graceful shutdown path flips this before stopping the listener
	svc.alive.Store(false)

	if status := checkAliveStatus(t, svc); status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 while draining, got %d", status)
	}
}
