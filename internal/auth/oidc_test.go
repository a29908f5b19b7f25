package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/stephane-berube/keycloak/internal/db/models"
)

func testProvider() *OIDCProvider {
	p := &OIDCProvider{
		config: &OIDCConfig{
			Enabled:     true,
			ClientID:    "host-app",
			RedirectURL: "https://host.example.com/auth/oidc/callback",
		},
		oauth2: oauth2.Config{
			ClientID:    "host-app",
			RedirectURL: "https://host.example.com/auth/oidc/callback",
			Scopes:      []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://idp.example.com/realms/main/protocol/openid-connect/auth",
				TokenURL: "https://idp.example.com/realms/main/protocol/openid-connect/token",
			},
		},
	}

	return p
}

func TestGenerateStateToken(t *testing.T) {
	first, err := GenerateStateToken()
	require.NoError(t, err)

	second, err := GenerateStateToken()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "state tokens must be unpredictable per request")

	// 32 bytes of entropy, base64url encoded
	assert.Len(t, first, 44)
}

func TestAuthCodeURL(t *testing.T) {
	p := testProvider()

	raw := p.AuthCodeURL("state-123", "")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "host-app", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "openid profile email", query.Get("scope"))
	assert.Equal(t, "https://host.example.com/auth/oidc/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-123", query.Get("state"))
	assert.Empty(t, query.Get("kc_locale"), "no locale parameter unless one is resolved")
}

func TestAuthCodeURLWithLocale(t *testing.T) {
	p := testProvider()

	raw := p.AuthCodeURL("state-123", "no")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "no", query.Get("kc_locale"))
	assert.Equal(t, "state-123", query.Get("state"))
}

func TestFindOrCreateUserProvisions(t *testing.T) {
	p := testProvider()
	p.db = setupTestDB(t)

	user, err := p.findOrCreateUser("sub-9", "kim@example.com", "Kim", "Doe", "de")
	require.NoError(t, err)

	assert.True(t, user.Active)
	assert.Equal(t, "kim@example.com", user.Username)
	assert.Equal(t, "kim@example.com", user.Email)
	assert.Equal(t, "Kim", user.FirstName)
	assert.Equal(t, "de", user.Locale)
	assert.Equal(t, models.AuthSourceOIDC, user.AuthSource)
	assert.Equal(t, "sub-9", user.ExternalID)
}

func TestFindOrCreateUserUpdatesOnRelogin(t *testing.T) {
	p := testProvider()
	p.db = setupTestDB(t)

	first, err := p.findOrCreateUser("sub-9", "kim@example.com", "Kim", "Doe", "de")
	require.NoError(t, err)

	second, err := p.findOrCreateUser("sub-9", "kim@example.com", "Kimberly", "Doe", "fr")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same external identity must map to the same account")
	assert.Equal(t, "Kimberly", second.FirstName)
	assert.Equal(t, "fr", second.Locale)

	var count int64
	p.db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFindOrCreateUserBlocksIdentityConflict(t *testing.T) {
	p := testProvider()
	p.db = setupTestDB(t)

	require.NoError(t, p.db.Create(&models.User{
		Active:     true,
		Username:   "kim@example.com",
		Email:      "kim@example.com",
		AuthSource: models.AuthSourceLocal,
	}).Error)

	_, err := p.findOrCreateUser("sub-9", "kim@example.com", "Kim", "Doe", "")
	assert.ErrorIs(t, err, ErrUserNameOrEmailExists)
}
