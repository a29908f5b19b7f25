// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keycloak-bridge",
	Short: "keycloak-bridge connects a host application to a Keycloak identity provider",
	Long: `keycloak-bridge connects a host application's authentication to a
Keycloak/OpenID Connect identity provider. It maps identity-provider groups
to host roles through an ordered rule set, builds locale-aware authorization
requests and serves the browser-side session-liveness check configuration.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
