package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/db/models"
)

// ErrOIDCDisabled is returned when OIDC is disabled via configuration.
var ErrOIDCDisabled = errors.New("oidc authentication is disabled")

// OIDCConfig holds OpenID Connect (OIDC) configuration for authentication.
type OIDCConfig struct {
	// Enabled indicates if OIDC authentication is enabled.
	Enabled bool
	// ProviderURL is the OIDC provider's discovery URL (e.g., "https://keycloak.example.com/realms/main").
	ProviderURL string
	// ClientID is the OAuth2 client identifier.
	ClientID string
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string
	// RedirectURL is the OAuth2 callback URL where the provider redirects after authentication.
	RedirectURL string
	// Scopes are the OAuth2 scopes to request (default: ["openid", "profile", "email"]).
	Scopes []string
	// GroupsClaim is the dot-delimited path to the group list inside the
	// claims payload (e.g. "groups" or "additional.groups").
	GroupsClaim string
}

// OIDCProvider handles OIDC authentication.
type OIDCProvider struct {
	config   *OIDCConfig
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
	db       *gorm.DB
}

// CallbackResult is the outcome of a completed authorization-code exchange.
type CallbackResult struct {
	// User is the provisioned or updated account.
	User *models.User
	// Claims is the full claims payload of the verified ID token; the role
	// rule engine extracts the group list from it.
	Claims map[string]any
	// SessionID is the provider session identifier (sid claim) the login was
	// established under. The session-liveness check sends it to the provider's
	// check frame.
	SessionID string
	// RawIDToken is the serialized ID token, kept for the id_token_hint
	// parameter of the provider logout.
	RawIDToken string
}

// NewOIDCProvider creates a new OIDC provider.
func NewOIDCProvider(ctx context.Context, config *OIDCConfig, db *gorm.DB) (*OIDCProvider, error) {
	if !config.Enabled {
		return nil, ErrOIDCDisabled
	}

	provider, err := oidc.NewProvider(ctx, config.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: config.ClientID,
	})

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &OIDCProvider{
		config:   config,
		provider: provider,
		verifier: verifier,
		oauth2:   oauth2Config,
		db:       db,
	}, nil
}

// GenerateStateToken generates a random state token for CSRF protection.
// 32 bytes of entropy, base64url encoded.
func GenerateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// AuthCodeURL returns the OIDC authorization URL with the state token.
// A non-empty providerLocale is passed along as the kc_locale parameter so
// the provider renders its login screens in the caller's language.
func (p *OIDCProvider) AuthCodeURL(state, providerLocale string) string {
	if providerLocale == "" {
		return p.oauth2.AuthCodeURL(state)
	}

	return p.oauth2.AuthCodeURL(state, oauth2.SetAuthURLParam("kc_locale", providerLocale))
}

// HandleCallback exchanges the authorization code, verifies the ID token and
// provisions (or updates) the matching user account.
func (p *OIDCProvider) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	// Exchange code for token
	oauth2Token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// Extract ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	// Verify ID token
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Locale     string `json:"locale"`
		SID        string `json:"sid"`
	}

	if err = idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	// Full payload for the rule engine; the configured groups claim is
	// resolved against this map.
	var allClaims map[string]any
	if err = idToken.Claims(&allClaims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	sessionID := claims.SID
	if sessionID == "" {
		// Older providers carry the session in the token response instead.
		sessionID, _ = oauth2Token.Extra("session_state").(string)
	}

	user, err := p.findOrCreateUser(claims.Sub, claims.Email, claims.GivenName, claims.FamilyName, claims.Locale)
	if err != nil {
		return nil, err
	}

	return &CallbackResult{
		User:       user,
		Claims:     allClaims,
		SessionID:  sessionID,
		RawIDToken: rawIDToken,
	}, nil
}

// findOrCreateUser provisions the account for an external identity, or
// updates it on re-login. A username or email already held by a different
// account blocks the conflicting change without failing the whole login.
func (p *OIDCProvider) findOrCreateUser(sub, email, firstName, lastName, hostLocale string) (*models.User, error) {
	var user models.User

	err := p.db.Where("external_id = ? AND auth_source = ?", sub, models.AuthSourceOIDC).
		First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if taken, errTaken := p.identityTaken(email, 0); errTaken != nil {
			return nil, errTaken
		} else if taken {
			return nil, ErrUserNameOrEmailExists
		}

		user = models.User{
			Active:     true,
			Username:   email, // Use email as username
			Email:      email,
			FirstName:  firstName,
			LastName:   lastName,
			Locale:     hostLocale,
			AuthSource: models.AuthSourceOIDC,
			ExternalID: sub,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}

		if err = p.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to query user: %w", err)
	default:
		if user.Email != email {
			taken, errTaken := p.identityTaken(email, user.ID)
			if errTaken != nil {
				return nil, errTaken
			}

			if taken {
				return nil, ErrUserNameOrEmailExists
			}

			user.Username = email
			user.Email = email
		}

		user.FirstName = firstName
		user.LastName = lastName

		if hostLocale != "" {
			user.Locale = hostLocale
		}

		user.UpdatedAt = time.Now()

		if err = p.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	return &user, nil
}

// identityTaken reports whether another account already uses the identity.
func (p *OIDCProvider) identityTaken(identity string, selfID uint64) (bool, error) {
	var count int64

	err := p.db.Model(&models.User{}).
		Where("(username = ? OR email = ?) AND id <> ?", identity, identity, selfID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check identity uniqueness: %w", err)
	}

	return count > 0, nil
}

// VerifyToken verifies the signature and claims of an OIDC ID token.
// It validates the token was issued by the configured provider and hasn't expired.
func (p *OIDCProvider) VerifyToken(ctx context.Context, rawToken string) (*oidc.IDToken, error) {
	return p.verifier.Verify(ctx, rawToken)
}

// GetLogoutURL constructs the OIDC provider's logout URL if supported.
// It includes the ID token hint and post-logout redirect URI parameters.
// Returns an empty string if the provider doesn't support logout endpoints.
func (p *OIDCProvider) GetLogoutURL(idToken, postLogoutRedirectURI string) string {
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}

	if err := p.provider.Claims(&claims); err != nil || claims.EndSessionEndpoint == "" {
		// Provider doesn't support logout endpoint
		return ""
	}

	params := url.Values{}
	if idToken != "" {
		params.Set("id_token_hint", idToken)
	}

	if postLogoutRedirectURI != "" {
		params.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}

	if len(params) == 0 {
		return claims.EndSessionEndpoint
	}

	return claims.EndSessionEndpoint + "?" + params.Encode()
}

// RefreshToken obtains a new access token using a refresh token.
// This allows extending the user's session without requiring re-authentication.
// Returns the new token set or an error if the refresh token is invalid or expired.
func (p *OIDCProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tokenSource := p.oauth2.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})

	return tokenSource.Token()
}

// GetUserInfo fetches additional user information from the OIDC UserInfo endpoint.
// This provides claims not included in the ID token, such as additional profile
// information or a group list only exposed there.
// The accessToken must be a valid OAuth2 access token.
func (p *OIDCProvider) GetUserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}

	var claims map[string]any
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse user info claims: %w", err)
	}

	return claims, nil
}
