package config

// Default values for configuration options.
const (
	defaultClearMode     = "cascade"
	defaultTableInterval = "0s"
	defaultInDir         = "in"
	defaultOutDir        = "out"
	defaultAPIURL        = "https://api.smartsheet.com/2.0"
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultVerboseLog    = "sheet.log"
	defaultJournalFile   = "journal.db"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding, so unset fields keep defaults.
func DefaultConfig() *Config {
	return &Config{
		RunConfig: RunConfig{
			ClearMode:     defaultClearMode,
			TableInterval: defaultTableInterval,
			InDir:         defaultInDir,
			OutDir:        defaultOutDir,
		},
		LoggingConfig: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		NetworkConfig: NetworkConfig{
			APIURL: defaultAPIURL,
		},
		Env:    make(map[string]string),
		Tables: make(map[string]TableConfig),
	}
}
