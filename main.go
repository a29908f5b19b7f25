// Package main provides the entry point for the Keycloak bridge service.
// It runs a web server using the Fiber framework that connects a host
// application's login flow to a Keycloak/OpenID Connect identity provider,
// synchronizes host roles from identity-provider group claims and delivers
// the session-liveness check configuration to the browser.
package main

import (
	"os"

	"github.com/stephane-berube/keycloak/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
