package config

import (
	"time"

	"github.com/stephane-berube/keycloak/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Auth      Auth
	Locales   Locales
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	DisableRecover bool    // disable recover middleware
	Session        Session // session settings
}

// Auth groups the available authentication providers.
type Auth struct {
	LocalDB LocalDBAuth
	OIDC    OIDCAuth
}

// LocalDBAuth enables password login against the local user table.
// It is the fallback path when the identity provider is unreachable.
type LocalDBAuth struct {
	Enabled bool
}

// OIDCAuth holds the OpenID Connect provider settings.
type OIDCAuth struct {
	// Enabled indicates if OIDC authentication is enabled.
	Enabled bool
	// ProviderURL is the OIDC provider's discovery URL (e.g., "https://keycloak.example.com/realms/main").
	ProviderURL string `validate:"required_with=Enabled,omitempty,url"`
	// ClientID is the OAuth2 client identifier.
	ClientID string
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string
	// RedirectURL is the OAuth2 callback URL where the provider redirects after authentication.
	RedirectURL string `validate:"omitempty,url"`
	// Scopes are the OAuth2 scopes to request (default: ["openid", "profile", "email"]).
	Scopes []string
	// GroupsClaim is the dot-delimited path to the group list inside the claims
	// payload (e.g. "groups" or "additional.groups").
	GroupsClaim string
	// SplitGroups splits hierarchical group paths ("/Org/Team") into their
	// individual segments before rule evaluation.
	SplitGroups bool
	// SplitGroupsMaxLevel limits how many segments of each group path are kept
	// when SplitGroups is on. 0 keeps all segments.
	SplitGroupsMaxLevel int `validate:"min=0"`
	// LocaleEnabled adds the kc_locale parameter to authorization requests,
	// resolved from the caller's host locale.
	LocaleEnabled bool
	// SessionCheck configures the browser-side session-liveness protocol.
	SessionCheck SessionCheck
}

// SessionCheck is the boundary configuration for the session-liveness check,
// delivered to the browser as static initialization data.
type SessionCheck struct {
	// Enabled turns the liveness check on.
	Enabled bool
	// IframeURL is the identity provider's session-check endpoint loaded in the
	// hidden frame. Absolute URLs carry their own origin; paths use the host origin.
	IframeURL string
	// Interval is the number of seconds between checks. Defaults to 2.
	Interval int `validate:"min=0,max=99999"`
}

// Locales lists the host-enabled locales and per-locale provider overrides.
type Locales struct {
	// Enabled lists the host locale identifiers available to users.
	Enabled []string
	// Overrides maps a host locale identifier to the provider locale string.
	// Locales without an override use their identifier verbatim.
	Overrides map[string]string
}

// DB holds the database configuration settings.
type DB struct {
	Driver   string // sqlite, mysql or postgres
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Path     string // database file path for the sqlite driver
}
