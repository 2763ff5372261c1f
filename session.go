package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/sheetsync/internal/config"
	"github.com/tonimelisma/sheetsync/internal/sheets"
	"github.com/tonimelisma/sheetsync/internal/tablesync"
)

// TableSession holds the API client, the journal and the syncer for one
// command run, plus the lock that keeps a second run away.
type TableSession struct {
	Client  *sheets.Client
	Journal *tablesync.Journal
	Syncer  *tablesync.Syncer

	unlock func()
}

// NewTableSession resolves the access token, takes the run lock, opens
// the journal and builds the syncer. Close releases all of it.
func NewTableSession(ctx context.Context, cc *CLIContext) (*TableSession, error) {
	token, err := config.ResolveCredentials(cc.Cfg, os.Getenv)
	if err != nil {
		if errors.Is(err, config.ErrNoCredentials) {
			return nil, fmt.Errorf("no access token: set %s in [env] of %s, the environment or a .env file",
				config.EnvToken, cc.Cfg.Path)
		}

		return nil, err
	}

	unlock, err := acquireRunLock(lockPath(cc.Cfg.JournalPath))
	if err != nil {
		return nil, err
	}

	journal, err := tablesync.OpenJournal(ctx, cc.Cfg.JournalPath, cc.Logger)
	if err != nil {
		unlock()
		return nil, err
	}

	client := sheets.NewClient(cc.Cfg.APIURL, nil, sheets.StaticToken(token), cc.Logger)

	syncer, err := tablesync.NewSyncer(client, cc.Cfg, journal, cc.Logger)
	if err != nil {
		journal.Close()
		unlock()

		return nil, err
	}

	cc.Logger.Debug("session ready",
		slog.String("api_url", cc.Cfg.APIURL),
		slog.String("journal", cc.Cfg.JournalPath),
	)

	return &TableSession{Client: client, Journal: journal, Syncer: syncer, unlock: unlock}, nil
}

// Close closes the journal and releases the run lock.
func (s *TableSession) Close() error {
	err := s.Journal.Close()
	s.unlock()

	return err
}

func lockPath(journalPath string) string {
	return journalPath + ".lock"
}
