// Package services implements the business logic layer between the HTTP
// handlers and the license and tool subsystems.
//
// Services follow interface-driven design: handlers depend on the
// LicenseService and ToolsService interfaces, constructors return the
// concrete implementations. Every method takes a context for
// cancellation and trace propagation.
package services
