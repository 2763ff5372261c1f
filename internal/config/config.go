// Package config implements TOML configuration loading, validation, and
// write-back for sheetsync. A config file names the tables to synchronize,
// each mapping a local spreadsheet file to a remote sheet id, plus global
// settings for directories, logging, and the replace workflow.
//
// Load returns the raw file contents; Snapshot resolves them into the
// immutable view used for one run. New sheet ids produced by a run are
// returned as []Assignment and persisted with ApplyAssignments, which edits
// the file line by line so comments and layout survive.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
// Embedded structs are flattened: their keys live at the top level.
type Config struct {
	RunConfig
	LoggingConfig
	NetworkConfig
	Env    map[string]string      `toml:"env"`
	Tables map[string]TableConfig `toml:"tables"`
}

// RunConfig controls where files live and how sheets are replaced.
type RunConfig struct {
	TargetFolder  string `toml:"target_folder"`
	ClearMode     string `toml:"clear_mode"`
	TableInterval string `toml:"table_interval"`
	InDir         string `toml:"in_dir"`
	OutDir        string `toml:"out_dir"`
	JournalPath   string `toml:"journal_path"`
}

// LoggingConfig controls log output. Verbose with no log_file writes a
// sheet.log next to the config file.
type LoggingConfig struct {
	Verbose   bool   `toml:"verbose" json:"verbose"`
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFile   string `toml:"log_file" json:"log_file,omitempty"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// NetworkConfig controls the API endpoint.
type NetworkConfig struct {
	APIURL string `toml:"api_url"`
}

// TableConfig is one [tables.<name>] section. ID is empty until the first
// successful import assigns one.
type TableConfig struct {
	ID  string `toml:"id"`
	Src string `toml:"src"`
}

// Table is a resolved table entry.
type Table struct {
	Name    string `json:"name"`
	SheetID int64  `json:"sheet_id,omitempty"`
	Src     string `json:"src"`
}

// Snapshot is the resolved, read-only configuration for one run. Paths are
// absolute and Tables is sorted by name.
type Snapshot struct {
	Path          string            `json:"path"`
	TargetFolder  string            `json:"target_folder,omitempty"`
	ClearMode     string            `json:"clear_mode"`
	TableInterval time.Duration     `json:"table_interval"`
	InDir         string            `json:"in_dir"`
	OutDir        string            `json:"out_dir"`
	JournalPath   string            `json:"journal_path"`
	APIURL        string            `json:"api_url"`
	Logging       LoggingConfig     `json:"logging"`
	Env           map[string]string `json:"-"`
	Tables        []Table           `json:"tables"`
}

// Assignment records a sheet id created for a table during a run.
type Assignment struct {
	Table   string `json:"table"`
	SheetID int64  `json:"sheet_id"`
}

// CLIOverrides holds values from CLI flags. Empty means not specified.
type CLIOverrides struct {
	ConfigPath string // --config
}
