package config

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCredentials is returned when no API access token can be found.
var ErrNoCredentials = errors.New("config: no " + EnvToken + " in [env] or the environment")

// ResolveCredentials returns the API access token. The [env] table wins
// over the process environment.
func ResolveCredentials(s *Snapshot, getenv func(string) string) (string, error) {
	if tok := s.Env[EnvToken]; tok != "" {
		return tok, nil
	}

	if tok := getenv(EnvToken); tok != "" {
		return tok, nil
	}

	return "", ErrNoCredentials
}

// ExportEnv sets every [env] entry in the process environment through
// setenv, in key order.
func ExportEnv(s *Snapshot, setenv func(key, value string) error) error {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := setenv(k, s.Env[k]); err != nil {
			return fmt.Errorf("config: exporting %s: %w", k, err)
		}
	}

	return nil
}
