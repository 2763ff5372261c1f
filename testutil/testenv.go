// Package testutil holds shared test helpers: an in-memory fake of the
// sheets REST API, workbook fixtures, and environment checks for the live
// end-to-end tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the live end-to-end tests.
const (
	EnvTestFolder     = "SHEETSYNC_TEST_FOLDER"
	EnvAllowedFolders = "SHEETSYNC_ALLOWED_TEST_FOLDERS"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at path. A missing file
// is not an error (CI sets variables directly). Variables already in the
// environment take precedence.
func LoadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parsing %s: %v\n", path, err)
		os.Exit(1)
	}
}

// ValidateAllowlist exits the process unless SHEETSYNC_TEST_FOLDER is set
// and listed in SHEETSYNC_ALLOWED_TEST_FOLDERS. Live tests create and
// delete sheets, so they only run against folders named there.
func ValidateAllowlist() string {
	allowlist := os.Getenv(EnvAllowedFolders)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedFolders)
		fmt.Fprintln(os.Stderr, "Set it in .env or as an environment variable.")
		fmt.Fprintf(os.Stderr, "Example: %s=4509093797881732\n", EnvAllowedFolders)
		os.Exit(1)
	}

	folder := os.Getenv(EnvTestFolder)
	if folder == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvTestFolder)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == folder {
			return folder
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", EnvTestFolder, folder, EnvAllowedFolders, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the working directory to find go.mod.
// Returns fallback if no root is found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
