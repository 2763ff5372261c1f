package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid top-level keys in the config file.
var knownGlobalKeys = map[string]bool{
	// Run settings
	"target_folder": true, "clear_mode": true, "table_interval": true,
	"in_dir": true, "out_dir": true, "journal_path": true,
	// Logging settings
	"verbose": true, "log_level": true, "log_file": true, "log_format": true,
	// Network settings
	"api_url": true,
	// Sections
	"env": true, "tables": true,
}

// knownTableKeys are the valid keys inside a [tables.<name>] section.
var knownTableKeys = map[string]bool{
	"id": true, "src": true,
}

var (
	knownGlobalKeysList = sortedKeys(knownGlobalKeys)
	knownTableKeysList  = sortedKeys(knownTableKeys)
)

// sortedKeys returns the keys of m sorted, for deterministic suggestions
// when two candidates have the same edit distance.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		if len(key) >= 3 && key[0] == "tables" {
			errs = append(errs, unknownKeyError(key[2], knownTableKeysList, fmt.Sprintf(" in [tables.%s]", key[1])))
			continue
		}

		errs = append(errs, unknownKeyError(key[0], knownGlobalKeysList, ""))
	}

	return errors.Join(errs...)
}

// unknownKeyError creates a descriptive error for an unknown key, suggesting
// the closest known key when one is near enough.
func unknownKeyError(field string, known []string, where string) error {
	if suggestion := closestMatch(field, known); suggestion != "" {
		return fmt.Errorf("unknown config key %q%s, did you mean %q?", field, where, suggestion)
	}

	return fmt.Errorf("unknown config key %q%s", field, where)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(strings.ToLower(unknown), k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
