package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// configFilePermissions is the permission mode for config files. The file
// may carry an access token in [env], so it is owner-only.
const configFilePermissions = 0o600

// configDirPermissions is the permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by CreateConfig when the file already exists.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate is the starter config written by "config init". Every
// global setting is present as a commented-out default.
const configTemplate = `# sheetsync configuration

# Folder that receives sheets imported for the first time.
# target_folder = ""

# How a target sheet is emptied before new rows are moved in:
# "cascade" or "keep_anchor".
# clear_mode = "cascade"

# Pause between tables, e.g. "30s".
# table_interval = "0s"

# Source and export directories, relative to this file.
# in_dir = "in"
# out_dir = "out"

# Log settings. verbose also writes sheet.log next to this file.
# verbose = false
# log_level = "info"
# log_format = "auto"

[env]
# SMARTSHEET_ACCESS_TOKEN = ""

# One section per table. id is filled in after the first import.
# [tables.Budget]
# id = ""
# src = "budget.xlsx"
`

// CreateConfig writes the starter config to path. An existing file is
// never overwritten.
func CreateConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	slog.Info("creating config file", "path", path)

	return atomicWriteFile(path, []byte(configTemplate))
}

// ApplyAssignments writes each assignment's sheet id into the config file
// at path, either into its [tables.<name>] section or into its inline table
// under [tables]. Lines outside the edited keys, comments included, are left
// as they are. Every assignment that can be placed is saved; the rest are
// reported together.
func ApplyAssignments(path string, assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	var errs []error

	applied := 0

	for _, a := range assignments {
		id := strconv.Quote(strconv.FormatInt(a.SheetID, 10))

		switch loc := locateTable(lines, a.Table); {
		case loc.header >= 0:
			lines = setKeyInSection(lines, loc.header, "id", "id = "+id)
		case loc.inline >= 0:
			lines[loc.inline] = setInlineID(lines[loc.inline], id)
		default:
			errs = append(errs, fmt.Errorf("table %s not found in config as [tables.%s] or an inline table under [tables]",
				strconv.Quote(a.Table), tableKey(a.Table)))

			continue
		}

		slog.Info("saving sheet id to config",
			"path", path,
			"table", a.Table,
			"sheet_id", a.SheetID,
		)

		applied++
	}

	if applied > 0 {
		if err := atomicWriteFile(path, []byte(strings.Join(lines, "\n"))); err != nil {
			return err
		}
	}

	return errors.Join(errs...)
}

// tableLocation says where a table is defined in the file: the line of its
// own section header, or the line of its inline table. Unused fields are -1.
type tableLocation struct {
	header int
	inline int
}

func (l tableLocation) found() bool {
	return l.header >= 0 || l.inline >= 0
}

func locateTable(lines []string, name string) tableLocation {
	if h := findTableHeader(lines, name); h >= 0 {
		return tableLocation{header: h, inline: -1}
	}

	return tableLocation{header: -1, inline: findInlineTable(lines, name)}
}

// checkWritable verifies that every unassigned table can receive its sheet
// id later. Tables written as dotted keys cannot be edited line by line.
func checkWritable(data []byte, tables []Table) error {
	lines := strings.Split(string(data), "\n")

	var errs []error

	for _, t := range tables {
		if t.SheetID != 0 || locateTable(lines, t.Name).found() {
			continue
		}

		errs = append(errs, fmt.Errorf(
			"table %s: define it as a [tables.%s] section or an inline table under [tables] so its sheet id can be saved",
			strconv.Quote(t.Name), tableKey(t.Name)))
	}

	return errors.Join(errs...)
}

// bareKey matches table names that TOML allows without quotes.
var bareKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// tableKey renders a table name as a TOML key.
func tableKey(name string) string {
	if bareKey.MatchString(name) {
		return name
	}

	return strconv.Quote(name)
}

// findTableHeader returns the line index of the [tables.<name>] header, in
// bare or quoted form, or -1.
func findTableHeader(lines []string, name string) int {
	candidates := []string{
		"[tables." + tableKey(name) + "]",
		"[tables." + strconv.Quote(name) + "]",
		"[tables.'" + name + "']",
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(stripComment(line))
		for _, c := range candidates {
			if trimmed == c {
				return i
			}
		}
	}

	return -1
}

// findInlineTable returns the line of `<name> = { ... }` inside the
// [tables] section, or -1.
func findInlineTable(lines []string, name string) int {
	header := -1

	for i, line := range lines {
		if strings.TrimSpace(stripComment(line)) == "[tables]" {
			header = i
			break
		}
	}

	if header < 0 {
		return -1
	}

	keys := []string{tableKey(name), strconv.Quote(name), "'" + name + "'"}

	for i := header + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "[") {
			break
		}

		for _, k := range keys {
			rest, ok := strings.CutPrefix(trimmed, k)
			if !ok {
				continue
			}

			rest, ok = strings.CutPrefix(strings.TrimSpace(rest), "=")
			if ok && strings.HasPrefix(strings.TrimSpace(rest), "{") {
				return i
			}
		}
	}

	return -1
}

// inlineID matches an id key inside an inline table.
var inlineID = regexp.MustCompile(`([{,]\s*)id\s*=\s*("[^"]*"|'[^']*'|[0-9]+)`)

// setInlineID sets id inside the inline table on line, replacing an
// existing value or adding the key right after the opening brace.
func setInlineID(line, id string) string {
	if loc := inlineID.FindStringSubmatchIndex(line); loc != nil {
		return line[:loc[3]] + "id = " + id + line[loc[1]:]
	}

	open := strings.Index(line, "{")
	body := strings.TrimSpace(line[open+1:])

	if strings.HasPrefix(body, "}") {
		return line[:open] + "{ id = " + id + " " + line[open+1+strings.Index(line[open+1:], "}"):]
	}

	return line[:open+1] + " id = " + id + "," + line[open+1:]
}

// stripComment drops a trailing "# ..." from a header line.
func stripComment(line string) string {
	if i := strings.Index(line, "]"); i >= 0 {
		if j := strings.Index(line[i:], "#"); j >= 0 {
			return line[:i+j]
		}
	}

	return line
}

// findSectionEnd returns the index of the first line after the section's
// own content: the next header, less any blank or comment lines that form
// its preamble.
func findSectionEnd(lines []string, headerLine int) int {
	next := len(lines)

	for i := headerLine + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "[") {
			next = i
			break
		}
	}

	end := next
	for end > headerLine+1 {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			end--
			continue
		}

		break
	}

	return end
}

// setKeyInSection either replaces an existing key line or inserts a new
// one after the section header.
func setKeyInSection(lines []string, headerLine int, key, newLine string) []string {
	end := findSectionEnd(lines, headerLine)

	for i := headerLine + 1; i < end; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, key+" ") || strings.HasPrefix(trimmed, key+"=") {
			lines[i] = newLine
			return lines
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return inserted
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it over path. An existing file keeps its permissions.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	perm := os.FileMode(configFilePermissions)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
