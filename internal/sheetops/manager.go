package sheetops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/sheetsync/internal/sheets"
)

// StagingPrefix is prepended to the table name for the temporary import.
const StagingPrefix = "TMP_"

// API is the subset of *sheets.Client used by Manager.
type API interface {
	GetSheet(ctx context.Context, sheetID int64, since time.Time) (*sheets.Sheet, error)
	UpdateRows(ctx context.Context, sheetID int64, updates []sheets.RowSpec, batchSize int) (int, error)
	DeleteRows(ctx context.Context, sheetID int64, rowIDs []int64, batchSize int) ([]sheets.DeleteResult, error)
	MoveRows(ctx context.Context, targetSheetID, sourceSheetID int64, batchSize int) (int, error)
	ImportSheet(ctx context.Context, name, localPath, folderID string) (*sheets.ImportResult, error)
	DeleteSheet(ctx context.Context, sheetID int64) error
}

// Hooks are optional callbacks fired around the staging sheet's lifetime.
type Hooks struct {
	// OnStaged is called right after the staging import succeeds.
	OnStaged func(ctx context.Context, name string, stagingID int64)
	// OnStagingRemoved is called after the staging sheet is deleted.
	OnStagingRemoved func(ctx context.Context, stagingID int64)
}

// Options configures a Manager.
type Options struct {
	ClearMode ClearMode
	Hooks     Hooks
}

// Manager runs sheet lifecycle workflows. Calls are sequential; a Manager
// is not meant for concurrent use.
type Manager struct {
	api    API
	opts   Options
	logger *slog.Logger
}

// NewManager creates a Manager. An empty ClearMode means ClearCascade.
func NewManager(api API, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.ClearMode == "" {
		opts.ClearMode = ClearCascade
	}

	return &Manager{api: api, opts: opts, logger: logger}
}

// Replacement is the outcome of ReplaceContents.
type Replacement struct {
	// SheetID is the sheet that now holds the file's rows.
	SheetID int64
	// Created is true when the sheet did not exist before and was created
	// by a direct import. The caller should persist SheetID.
	Created bool
	// StagingID is the temporary sheet used for the transfer, zero when
	// Created is true.
	StagingID int64
	// MoveBatches is the number of move requests issued.
	MoveBatches int
}

// ReplaceContents makes the sheet for name hold exactly the rows of the
// file at localPath.
//
// With targetSheetID zero the file is imported directly into folderID and
// the new sheet is returned with Created set. Otherwise the file is staged
// as TMP_<name>, the target is cleared, the staged rows are moved in and
// the staging sheet is deleted.
func (m *Manager) ReplaceContents(
	ctx context.Context, name, localPath string, targetSheetID int64, folderID string,
) (Replacement, error) {
	if targetSheetID == 0 {
		return m.createSheet(ctx, name, localPath, folderID)
	}

	stagingName := StagingPrefix + name

	res, err := m.api.ImportSheet(ctx, stagingName, localPath, "")
	if err != nil {
		m.logger.Error("staging import failed, skipping table",
			slog.String("table", name),
			slog.String("path", localPath),
			slog.String("error", err.Error()),
		)

		return Replacement{}, fmt.Errorf("%w: %s: %w", ErrImportFailed, name, err)
	}

	if res.Rejected() {
		m.logger.Error("staging import rejected",
			slog.String("table", name),
			slog.String("message", res.Message),
			slog.Int("result_code", res.ResultCode),
		)

		return Replacement{}, &ImportRejectedError{Name: name, Message: res.Message, ResultCode: res.ResultCode}
	}

	if res.SheetID == 0 {
		return Replacement{}, fmt.Errorf("%w: %s: no sheet id in import result", ErrImportFailed, name)
	}

	stagingID := res.SheetID
	if m.opts.Hooks.OnStaged != nil {
		m.opts.Hooks.OnStaged(ctx, name, stagingID)
	}

	m.logger.Info("staged import",
		slog.String("table", name),
		slog.Int64("staging_sheet_id", stagingID),
		slog.Int64("target_sheet_id", targetSheetID),
	)

	if err := m.ClearSheet(ctx, targetSheetID); err != nil {
		return Replacement{}, &StagingError{StagingID: stagingID, Step: "clear target", Err: err}
	}

	moves, err := m.api.MoveRows(ctx, targetSheetID, stagingID, sheets.MaxMoveRows)
	if err != nil {
		return Replacement{}, &StagingError{StagingID: stagingID, Step: "move rows", Err: err}
	}

	if err := m.DeleteSheet(ctx, stagingID); err != nil {
		return Replacement{}, &StagingError{StagingID: stagingID, Step: "delete staging sheet", Err: err}
	}

	if m.opts.Hooks.OnStagingRemoved != nil {
		m.opts.Hooks.OnStagingRemoved(ctx, stagingID)
	}

	m.logger.Info("replaced sheet contents",
		slog.String("table", name),
		slog.Int64("sheet_id", targetSheetID),
		slog.Int("move_batches", moves),
	)

	return Replacement{SheetID: targetSheetID, StagingID: stagingID, MoveBatches: moves}, nil
}

// createSheet imports the file as a brand-new sheet named name.
func (m *Manager) createSheet(ctx context.Context, name, localPath, folderID string) (Replacement, error) {
	m.logger.Info("no sheet assigned, importing new sheet",
		slog.String("table", name),
		slog.String("path", localPath),
		slog.String("folder_id", folderID),
	)

	res, err := m.api.ImportSheet(ctx, name, localPath, folderID)
	if err != nil {
		m.logger.Error("import failed, skipping table",
			slog.String("table", name),
			slog.String("error", err.Error()),
		)

		return Replacement{}, fmt.Errorf("%w: %s: %w", ErrImportFailed, name, err)
	}

	if res.SheetID == 0 {
		return Replacement{}, fmt.Errorf("%w: %s: no sheet id in import result", ErrImportFailed, name)
	}

	if res.Rejected() {
		m.logger.Warn("new sheet imported with warnings",
			slog.String("table", name),
			slog.Int64("sheet_id", res.SheetID),
			slog.String("message", res.Message),
		)
	}

	m.logger.Info("new sheet loaded",
		slog.String("table", name),
		slog.Int64("sheet_id", res.SheetID),
	)

	return Replacement{SheetID: res.SheetID, Created: true}, nil
}

// DeleteSheet deletes a sheet. A failure is logged and returned; it is
// never retried.
func (m *Manager) DeleteSheet(ctx context.Context, sheetID int64) error {
	if err := m.api.DeleteSheet(ctx, sheetID); err != nil {
		m.logger.Error("deleting sheet failed",
			slog.Int64("sheet_id", sheetID),
			slog.String("error", err.Error()),
		)

		return err
	}

	return nil
}

// isNotFound reports whether err is the client's "absent" answer.
func isNotFound(err error) bool {
	return errors.Is(err, sheets.ErrNotFound)
}
