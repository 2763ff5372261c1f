package config

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// secretMarkers flag [env] keys whose values are never printed.
var secretMarkers = []string{"TOKEN", "SECRET", "PASSWORD", "KEY"}

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. Secret-looking [env] values are redacted.
func RenderEffective(s *Snapshot, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration from %s\n\n", s.Path)

	ew.printf("target_folder  = %q\n", s.TargetFolder)
	ew.printf("clear_mode     = %q\n", s.ClearMode)
	ew.printf("table_interval = %q\n", s.TableInterval.String())
	ew.printf("in_dir         = %q\n", s.InDir)
	ew.printf("out_dir        = %q\n", s.OutDir)
	ew.printf("journal_path   = %q\n", s.JournalPath)
	ew.printf("api_url        = %q\n", s.APIURL)
	ew.printf("verbose        = %t\n", s.Logging.Verbose)
	ew.printf("log_level      = %q\n", s.Logging.LogLevel)
	ew.printf("log_format     = %q\n", s.Logging.LogFormat)

	if s.Logging.LogFile != "" {
		ew.printf("log_file       = %q\n", s.Logging.LogFile)
	}

	renderEnv(ew, s.Env)

	for _, t := range s.Tables {
		ew.printf("\n[tables.%s]\n", tableKey(t.Name))

		if t.SheetID != 0 {
			ew.printf("  id  = \"%d\"\n", t.SheetID)
		} else {
			ew.printf("  id  = \"\"  # assigned on first set\n")
		}

		ew.printf("  src = %q\n", t.Src)
	}

	return ew.err
}

func renderEnv(ew *errWriter, env map[string]string) {
	if len(env) == 0 {
		return
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	ew.printf("\n[env]\n")

	for _, k := range keys {
		ew.printf("  %s = %q\n", k, RedactEnv(k, env[k]))
	}
}

// RedactEnv returns value, or a placeholder when key looks like a secret.
func RedactEnv(key, value string) string {
	upper := strings.ToUpper(key)
	for _, m := range secretMarkers {
		if strings.Contains(upper, m) && value != "" {
			return "[REDACTED]"
		}
	}

	return value
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
