// Package config holds the application configuration and path resolution
// for TKT Multiform. Configuration is loaded from environment variables
// (prefix TKT) with an optional YAML file, and is passed explicitly into
// component constructors; nothing in this package is read lazily at call
// sites.
package config
