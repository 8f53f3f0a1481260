// Package http implements the HTTP handlers of the application shell.
// Handlers stay thin: they parse and validate requests, delegate to the
// service layer, and transform service errors into RFC 7807 problem
// responses.
package http
