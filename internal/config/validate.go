package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRun(&cfg.RunConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)
	errs = append(errs, validateTables(cfg.Tables)...)

	return errors.Join(errs...)
}

var validClearModes = map[string]bool{
	"cascade":     true,
	"keep_anchor": true,
}

func validateRun(r *RunConfig) []error {
	var errs []error

	if !validClearModes[r.ClearMode] {
		errs = append(errs, fmt.Errorf("clear_mode: must be one of cascade, keep_anchor; got %q", r.ClearMode))
	}

	d, err := time.ParseDuration(r.TableInterval)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("table_interval: invalid duration %q: %w", r.TableInterval, err))
	case d < 0:
		errs = append(errs, fmt.Errorf("table_interval: must not be negative, got %q", r.TableInterval))
	}

	if r.TargetFolder != "" && !isDigits(r.TargetFolder) {
		errs = append(errs, fmt.Errorf("target_folder: must be a numeric folder id, got %q", r.TargetFolder))
	}

	if r.InDir == "" {
		errs = append(errs, errors.New("in_dir: must not be empty"))
	}

	if r.OutDir == "" {
		errs = append(errs, errors.New("out_dir: must not be empty"))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	u, err := url.Parse(n.APIURL)
	if err != nil {
		return []error{fmt.Errorf("api_url: %w", err)}
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return []error{fmt.Errorf("api_url: must be an absolute http(s) URL, got %q", n.APIURL)}
	}

	return nil
}

func validateTables(tables map[string]TableConfig) []error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}

	sort.Strings(names)

	var errs []error

	for _, name := range names {
		t := tables[name]

		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("tables: table name must not be empty"))
		}

		if t.Src == "" {
			errs = append(errs, fmt.Errorf("tables.%s.src: must not be empty", name))
		}

		if _, err := parseSheetID(t.ID); err != nil {
			errs = append(errs, fmt.Errorf("tables.%s.id: %w", name, err))
		}
	}

	return errs
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}
