// Package config defines the service configuration schema and loading.
//
// Configuration is layered: built-in defaults, then the YAML file, then
// SENTINEL_* environment variables. The final result is validated before
// any component sees it.
package config
