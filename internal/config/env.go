package config

import "os"

// Environment variable names.
const (
	EnvConfig = "SHEETSYNC_CONFIG"
	EnvToken  = "SMARTSHEET_ACCESS_TOKEN"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // SHEETSYNC_CONFIG: override config file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
	}
}
