package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ResolvePath picks the config file path: CLI flag, then environment, then
// the platform default.
func ResolvePath(env EnvOverrides, cli CLIOverrides) string {
	if cli.ConfigPath != "" {
		return cli.ConfigPath
	}

	if env.ConfigPath != "" {
		return env.ConfigPath
	}

	return DefaultConfigPath()
}

// LoadSnapshot loads the config file at path and resolves it.
func LoadSnapshot(path string) (*Snapshot, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	snap, err := cfg.Snapshot(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := checkWritable(data, snap.Tables); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return snap, nil
}

// Snapshot resolves cfg, loaded from path, into the view used for a run.
// Relative directories and files are taken relative to the config file's
// directory.
func (c *Config) Snapshot(path string) (*Snapshot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	base := filepath.Dir(abs)

	interval, err := time.ParseDuration(c.TableInterval)
	if err != nil {
		return nil, fmt.Errorf("table_interval: %w", err)
	}

	s := &Snapshot{
		Path:          abs,
		TargetFolder:  c.TargetFolder,
		ClearMode:     c.ClearMode,
		TableInterval: interval,
		InDir:         relativeTo(base, c.InDir),
		OutDir:        relativeTo(base, c.OutDir),
		JournalPath:   c.JournalPath,
		APIURL:        c.APIURL,
		Logging:       c.LoggingConfig,
		Env:           make(map[string]string, len(c.Env)),
		Tables:        make([]Table, 0, len(c.Tables)),
	}

	for k, v := range c.Env {
		s.Env[k] = v
	}

	if s.JournalPath == "" {
		s.JournalPath = filepath.Join(DefaultDataDir(), defaultJournalFile)
	} else {
		s.JournalPath = relativeTo(base, s.JournalPath)
	}

	switch {
	case s.Logging.LogFile != "":
		s.Logging.LogFile = relativeTo(base, s.Logging.LogFile)
	case s.Logging.Verbose:
		s.Logging.LogFile = filepath.Join(base, defaultVerboseLog)
	}

	for name, t := range c.Tables {
		id, err := parseSheetID(t.ID)
		if err != nil {
			return nil, fmt.Errorf("tables.%s.id: %w", name, err)
		}

		s.Tables = append(s.Tables, Table{Name: name, SheetID: id, Src: t.Src})
	}

	sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })

	return s, nil
}

// Table returns the named table entry.
func (s *Snapshot) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}

	return Table{}, false
}

// parseSheetID converts a stored id to an int64. Empty means unassigned.
func parseSheetID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be empty or a positive integer, got %q", raw)
	}

	return id, nil
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(base, p)
}
