// Package middleware holds the gin middleware in front of the sidecar:
// CORS for the webview origin and per-address rate limiting.
package middleware
