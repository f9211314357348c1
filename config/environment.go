package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"

	// DefaultConfigPath is used when no -config flag is given.
	DefaultConfigPath = "config.yml"
)

var environmentAliases = map[string]string{
	"prod": environmentProduction,
	"stag": environmentStaging,
	"dev":  environmentDevelopment,
}

// envConfigPaths maps an environment to the file that replaces the default
// config path in that environment.
var envConfigPaths = map[string]string{
	environmentProduction: "config.production.yml",
	environmentStaging:    "config.staging.yml",
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// AppEnvironment exposes the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// ResolveConfigPath swaps the default config path for the environment
// specific one. Explicitly chosen paths are returned untouched.
func ResolveConfigPath(path string) string {
	if path == "" {
		path = DefaultConfigPath
	}
	if path != DefaultConfigPath {
		return path
	}
	if envPath, ok := envConfigPaths[getAppEnvironment()]; ok {
		return envPath
	}
	return path
}
