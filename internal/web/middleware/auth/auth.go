package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stephane-berube/keycloak/internal/web/handler/login"
	"github.com/stephane-berube/keycloak/internal/web/session"
)

// publicPrefixes are request paths that must stay reachable without a
// session: the login endpoints, the OIDC flow itself and the liveness
// probe used by load balancers.
var publicPrefixes = []string{
	"/logout",
	"/auth/oidc/login",
	"/auth/oidc/callback",
	"/auth/oidc/logout",
	"/checkalive",
}

// Middleware is a Fiber middleware that checks for user authentication.
func Middleware(c *fiber.Ctx) error {
	var (
		isLoginPage   = IsLoginPage(c)
		sessDataValid bool
	)

	originalURL := strings.ToLower(c.OriginalURL())
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(originalURL, prefix) {
			return c.Next()
		}
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	// if no session cookie, redirect to login page
	if loginCookie == "" && !isLoginPage {
		return c.Redirect(login.Path)
	}

	// check session validity
	sessData := new(session.Data)
	if err := sessData.Read(loginCookie); err != nil {
		// If we're already on the login page, don't redirect (would cause loop)
		if isLoginPage {
			return c.Next()
		}

		return c.Redirect(login.Path)
	}

	// valid data in session
	if sessData.User.ID > 0 {
		sessDataValid = true
		// Add the current user to locals for handler access
		c.Locals("CurrentUser", sessData.User)
		c.Locals("SessionData", sessData)
	}

	if sessDataValid && isLoginPage {
		return c.Redirect("/")
	}

	return c.Next()
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}
