// Package handler holds shared pieces of the web handler services.
package handler

const (
	// RootPath is the root path of the route group.
	RootPath = "/"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"

	// CacheControlNoStore marks responses that must never be cached, such as
	// authorization redirects and session-check configuration.
	CacheControlNoStore = "no-store, no-cache, must-revalidate"
)
