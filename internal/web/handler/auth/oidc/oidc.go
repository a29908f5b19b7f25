// Package oidc implements the identity-provider login flow endpoints.
package oidc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	"github.com/stephane-berube/keycloak/internal/db/controller/localemapping"
	"github.com/stephane-berube/keycloak/internal/livecheck"
	"github.com/stephane-berube/keycloak/internal/locale"
	"github.com/stephane-berube/keycloak/internal/web/handler"
	"github.com/stephane-berube/keycloak/internal/web/session"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	// LogoutPath is the path for OIDC logout.
	LogoutPath = handler.RootPath + "auth/oidc/logout"

	// SessionCheckPath serves the browser-side liveness check configuration.
	SessionCheckPath = handler.RootPath + "auth/oidc/session-check"

	// stateTTL is how long an issued state token stays valid.
	stateTTL = 5 * time.Minute
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg          *config.Config
	db           *gorm.DB
	oidcProvider *auth.OIDCProvider
	authService  *auth.Service

	stateMu    sync.Mutex
	stateStore map[string]time.Time // issued anti-forgery state tokens
}

// Handler is the OIDC handler.
var Handler = Service{
	stateStore: make(map[string]time.Time),
}

// Init initializes the OIDC handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.authService = auth.NewService(db)

	if !cfg.Auth.OIDC.Enabled {
		return nil
	}

	oidcConfig := auth.OIDCConfig{
		Enabled:      cfg.Auth.OIDC.Enabled,
		ProviderURL:  cfg.Auth.OIDC.ProviderURL,
		ClientID:     cfg.Auth.OIDC.ClientID,
		ClientSecret: cfg.Auth.OIDC.ClientSecret,
		RedirectURL:  cfg.Auth.OIDC.RedirectURL,
		Scopes:       cfg.Auth.OIDC.Scopes,
		GroupsClaim:  cfg.Auth.OIDC.GroupsClaim,
	}

	ctx := context.Background()

	oidcProvider, err := auth.NewOIDCProvider(ctx, &oidcConfig, db)
	if err != nil {
		if errors.Is(err, auth.ErrOIDCDisabled) {
			log.Info().Msg("OIDC authentication is disabled by configuration")
		} else {
			log.Warn().Err(err).Msg("failed to initialize OIDC provider - OIDC authentication will be disabled")
		}

		return nil // don't fail startup, just disable OIDC
	}

	s.oidcProvider = oidcProvider

	log.Info().Msg("OIDC authentication provider initialized")

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
	app.Get(LogoutPath, s.Logout)
	app.Get(SessionCheckPath, s.SessionCheck)

	// Start state cleanup goroutine
	go s.cleanupStates()

	return nil
}

// Login initiates the OIDC login flow. It builds the authorization URL with
// a fresh anti-forgery state token and, when locale support is enabled, the
// kc_locale parameter resolved from the caller's host locale. The redirect
// must never be cached, and any pending post-login redirect target is
// dropped because this flow overrides it.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	state, err := auth.GenerateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate state token")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.stateMu.Lock()
	s.stateStore[state] = time.Now().Add(stateTTL)
	s.stateMu.Unlock()

	authURL := s.oidcProvider.AuthCodeURL(state, s.resolveProviderLocale(c))

	c.Set(fiber.HeaderCacheControl, handler.CacheControlNoStore)
	c.Set(fiber.HeaderPragma, "no-cache")

	return c.Redirect(authURL)
}

// resolveProviderLocale maps the caller's host locale to the provider
// locale. Without an override the host locale identifier is used verbatim;
// with locale support disabled no locale is sent at all.
func (s *Service) resolveProviderLocale(c *fiber.Ctx) string {
	if !s.cfg.Auth.OIDC.LocaleEnabled || len(s.cfg.Locales.Enabled) == 0 {
		return ""
	}

	hostLocale := c.Query("locale")
	if hostLocale == "" {
		hostLocale = s.cfg.Locales.Enabled[0]
	}

	overrides := make([]locale.Override, 0, len(s.cfg.Locales.Overrides))
	for hostID, providerLocale := range s.cfg.Locales.Overrides {
		overrides = append(overrides, locale.Override{HostID: hostID, ProviderLocale: providerLocale})
	}

	// Database mappings take precedence over the static configuration.
	dbOverrides, err := localemapping.List(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to load locale mappings")
	}

	return locale.ResolveProvider(s.cfg.Locales.Enabled, append(overrides, dbOverrides...), hostLocale)
}

// Callback handles the OIDC callback: it validates the single-use state
// token, exchanges the code, synchronizes the user's roles from the group
// claims and establishes the login session.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("missing code or state in OIDC callback")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid callback parameters")
	}

	if !s.consumeState(state) {
		log.Error().Msg("invalid or expired state token")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state token")
	}

	ctx := context.Background()

	result, err := s.oidcProvider.HandleCallback(ctx, code)
	if err != nil {
		if errors.Is(err, auth.ErrUserNameOrEmailExists) {
			return c.Status(fiber.StatusConflict).
				SendString("The username or email is already used by another account")
		}

		log.Error().Err(err).Msg("OIDC authentication failed")

		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	// Reconcile roles from the group claims
	err = s.authService.SyncRoles(result.User, result.Claims, auth.SyncConfig{
		GroupsClaim:         s.cfg.Auth.OIDC.GroupsClaim,
		SplitGroups:         s.cfg.Auth.OIDC.SplitGroups,
		SplitGroupsMaxLevel: s.cfg.Auth.OIDC.SplitGroupsMaxLevel,
	})
	if err != nil {
		log.Error().Err(err).Uint64("user_id", result.User.ID).Msg("failed to sync roles")
	}

	sessionID, errSession := session.GenerateSessionID()
	if errSession != nil {
		log.Error().Err(errSession).Msg("failed to generate session ID")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	userSession := &session.Data{
		User:              *result.User,
		ProviderSessionID: result.SessionID,
		RawIDToken:        result.RawIDToken,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	log.Info().Str("username", result.User.Username).Msg("user logged in successfully via OIDC")

	return c.Redirect(handler.RootPath)
}

// Logout terminates the local session and redirects to the provider's
// end-session endpoint when it exposes one.
func (s *Service) Logout(c *fiber.Ctx) error {
	var idToken string

	sessionID := c.Cookies("session")
	if sessionID != "" {
		sessData := new(session.Data)
		if err := sessData.Read(sessionID); err == nil {
			idToken = sessData.RawIDToken
		}

		if err := session.Store.Storage.Delete(sessionID); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	c.ClearCookie("session")

	if s.oidcProvider != nil {
		logoutURL := s.oidcProvider.GetLogoutURL(idToken, s.cfg.Webserver.URL)
		if logoutURL != "" {
			return c.Redirect(logoutURL)
		}
	}

	return c.Redirect("/login")
}

// SessionCheck delivers the browser-side liveness check configuration as
// uncached JSON. The browser feeds it to the monitor that owns the hidden
// provider frame.
func (s *Service) SessionCheck(c *fiber.Ctx) error {
	sc := s.cfg.Auth.OIDC.SessionCheck

	cfg := livecheck.Config{
		Enabled:   sc.Enabled,
		IframeURL: sc.IframeURL,
		Interval:  sc.Interval,
		LogoutURL: LogoutPath,
		ClientID:  s.cfg.Auth.OIDC.ClientID,
	}

	if sc.Enabled {
		sessData := new(session.Data)
		if err := sessData.Read(c.Cookies("session")); err == nil {
			cfg.SessionID = sessData.ProviderSessionID
		}
	}

	c.Set(fiber.HeaderCacheControl, handler.CacheControlNoStore)
	c.Set(fiber.HeaderPragma, "no-cache")

	return c.JSON(cfg)
}

// consumeState validates and invalidates a single-use state token.
func (s *Service) consumeState(state string) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	expiration, exists := s.stateStore[state]
	if !exists {
		return false
	}

	delete(s.stateStore, state)

	return time.Now().Before(expiration)
}

// cleanupStates periodically removes expired state tokens.
func (s *Service) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		s.stateMu.Lock()
		for state, expiration := range s.stateStore {
			if now.After(expiration) {
				delete(s.stateStore, state)
			}
		}
		s.stateMu.Unlock()
	}
}
