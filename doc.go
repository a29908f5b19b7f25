// Package main provides the entry point for the identity bridge service.
// It initializes and runs a web server using the Fiber framework that
// authenticates users against an OpenID Connect provider, maps their group
// claims to local roles through an ordered rule engine, and serves the
// configuration for the browser-side provider session liveness check.
// The application uses gorm for data persistence.
package main
