package tablesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tonimelisma/sheetsync/internal/config"
	"github.com/tonimelisma/sheetsync/internal/sheetops"
	"github.com/tonimelisma/sheetsync/internal/sheets"
	"github.com/tonimelisma/sheetsync/internal/workbook"
)

// AuditSheetName is the worksheet name given to exported files.
const AuditSheetName = "AUDIT"

// API is the subset of *sheets.Client used by Syncer.
type API interface {
	sheetops.API
	ExportSheet(ctx context.Context, sheetID int64, destPath string) (*sheets.Export, error)
	AttachFile(ctx context.Context, sheetID int64, localPath string) (*sheets.Attachment, error)
}

// Status is the outcome of one table in a run.
type Status string

// Table outcomes.
const (
	StatusCreated  Status = "created"
	StatusReplaced Status = "replaced"
	StatusExported Status = "exported"
	StatusAttached Status = "attached"
	StatusRemoved  Status = "removed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// TableResult records what happened to one table.
type TableResult struct {
	Table     string
	SheetID   int64
	Status    Status
	Rows      int
	StagingID int64
	Path      string
	Err       error
}

// Report summarizes a run. Assignments lists the tables that received a
// sheet id during the run and must be written back to the config file,
// even when the run was aborted.
type Report struct {
	RunID       string
	Command     string
	Results     []TableResult
	Assignments []config.Assignment
	Aborted     bool
}

// Skipped counts the tables that were skipped or failed.
func (r *Report) Skipped() int {
	n := 0

	for _, res := range r.Results {
		if res.Status == StatusSkipped || res.Status == StatusFailed {
			n++
		}
	}

	return n
}

// status derives the journal status of the run.
func (r *Report) status() string {
	switch {
	case r.Aborted:
		return RunAborted
	case r.Skipped() > 0:
		return RunPartial
	default:
		return RunOK
	}
}

// Syncer runs the per-table workflows against one config snapshot.
type Syncer struct {
	api     API
	ops     *sheetops.Manager
	cfg     *config.Snapshot
	journal *Journal
	logger  *slog.Logger
	runID   string

	// sleep waits between tables; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncer creates a Syncer. The lifecycle manager it drives records
// staging sheets in journal as they come and go.
func NewSyncer(api API, cfg *config.Snapshot, journal *Journal, logger *slog.Logger) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := sheetops.ParseClearMode(cfg.ClearMode)
	if err != nil {
		return nil, fmt.Errorf("tablesync: %w", err)
	}

	s := &Syncer{
		api:     api,
		cfg:     cfg,
		journal: journal,
		logger:  logger,
		sleep:   sleepContext,
	}

	s.ops = sheetops.NewManager(api, sheetops.Options{
		ClearMode: mode,
		Hooks: sheetops.Hooks{
			OnStaged:         s.recordStaging,
			OnStagingRemoved: s.recordStagingRemoved,
		},
	}, logger)

	return s, nil
}

func (s *Syncer) recordStaging(ctx context.Context, table string, stagingID int64) {
	if err := s.journal.RecordStaging(ctx, s.runID, table, stagingID); err != nil {
		s.logger.Warn("could not journal staging sheet",
			slog.Int64("staging_sheet_id", stagingID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Syncer) recordStagingRemoved(ctx context.Context, stagingID int64) {
	if err := s.journal.MarkStagingRemoved(ctx, stagingID); err != nil {
		s.logger.Warn("could not journal staging sheet removal",
			slog.Int64("staging_sheet_id", stagingID),
			slog.String("error", err.Error()),
		)
	}
}

// begin opens a journal run for command.
func (s *Syncer) begin(ctx context.Context, command string) (*Report, error) {
	id, err := s.journal.BeginRun(ctx, command, s.cfg.Path)
	if err != nil {
		return nil, err
	}

	s.runID = id
	s.logger.Info("run started",
		slog.String("run_id", id),
		slog.String("command", command),
		slog.Int("tables", len(s.cfg.Tables)),
	)

	return &Report{RunID: id, Command: command}, nil
}

// finish stamps the run status. A journal failure is logged, not returned,
// so it never hides the run's own error.
func (s *Syncer) finish(report *Report, runErr error) {
	status := report.status()
	if runErr != nil && !report.Aborted {
		status = RunFailed
	}

	// The run context may already be cancelled.
	if err := s.journal.FinishRun(context.Background(), report.RunID, status); err != nil {
		s.logger.Warn("could not journal run finish", slog.String("error", err.Error()))
	}

	s.logger.Info("run finished",
		slog.String("run_id", report.RunID),
		slog.String("status", status),
		slog.Int("skipped", report.Skipped()),
	)
}

// Replace makes every table's sheet hold the rows of its source file.
// Tables run in name order with table_interval between them. A table is
// skipped when its source is missing or unreadable, when the import fails
// or when the replacement fails after staging. A rejected import or a
// vanished target aborts the run with the remaining tables untouched.
func (s *Syncer) Replace(ctx context.Context) (report *Report, err error) {
	report, err = s.begin(ctx, "set")
	if err != nil {
		return nil, err
	}

	defer func() { s.finish(report, err) }()

	for i, t := range s.cfg.Tables {
		if ctx.Err() != nil {
			return report, fmt.Errorf("tablesync: run interrupted before %s: %w", t.Name, context.Cause(ctx))
		}

		if i > 0 && s.cfg.TableInterval > 0 {
			s.logger.Debug("pausing between tables", slog.Duration("interval", s.cfg.TableInterval))

			if err := s.sleep(ctx, s.cfg.TableInterval); err != nil {
				return report, fmt.Errorf("tablesync: run interrupted before %s: %w", t.Name, err)
			}
		}

		res, abortErr := s.replaceTable(ctx, t)
		report.Results = append(report.Results, res)

		if res.Status == StatusCreated {
			report.Assignments = append(report.Assignments, config.Assignment{Table: t.Name, SheetID: res.SheetID})
		}

		if abortErr != nil {
			report.Aborted = true
			s.logger.Error("run aborted",
				slog.String("table", t.Name),
				slog.String("error", abortErr.Error()),
			)

			return report, abortErr
		}
	}

	return report, nil
}

// replaceTable runs one table. The returned error is non-nil only when the
// whole run must stop; per-table failures are reported in the result.
func (s *Syncer) replaceTable(ctx context.Context, t config.Table) (TableResult, error) {
	res := TableResult{Table: t.Name, SheetID: t.SheetID, Path: s.sourcePath(t)}

	s.logger.Info("replacing table",
		slog.String("table", t.Name),
		slog.Int64("sheet_id", t.SheetID),
		slog.String("path", res.Path),
	)

	rows, err := s.checkSource(res.Path)
	if err != nil {
		s.logger.Warn("skipping table, source unusable",
			slog.String("table", t.Name),
			slog.String("error", err.Error()),
		)

		res.Status = StatusSkipped
		res.Err = err

		return res, nil
	}

	res.Rows = rows

	rep, err := s.ops.ReplaceContents(ctx, t.Name, res.Path, t.SheetID, s.cfg.TargetFolder)
	if err == nil {
		res.SheetID = rep.SheetID
		res.StagingID = rep.StagingID
		res.Status = StatusReplaced

		if rep.Created {
			res.Status = StatusCreated
		}

		return res, nil
	}

	res.Err = err

	var rejected *sheetops.ImportRejectedError
	if errors.As(err, &rejected) {
		res.Status = StatusFailed
		return res, err
	}

	var staged *sheetops.StagingError
	if errors.As(err, &staged) {
		res.StagingID = staged.StagingID

		if noteErr := s.journal.NoteStagingError(ctx, staged.StagingID, err); noteErr != nil {
			s.logger.Warn("could not journal staging failure", slog.String("error", noteErr.Error()))
		}

		if errors.Is(err, sheetops.ErrTargetMissing) {
			res.Status = StatusFailed
			return res, err
		}

		s.logger.Error("replacement failed after staging, staging sheet left behind",
			slog.String("table", t.Name),
			slog.Int64("staging_sheet_id", staged.StagingID),
			slog.String("step", staged.Step),
			slog.String("error", err.Error()),
		)

		res.Status = StatusFailed

		return res, nil
	}

	if errors.Is(err, sheetops.ErrImportFailed) {
		res.Status = StatusSkipped
		return res, nil
	}

	res.Status = StatusFailed

	return res, err
}

// checkSource verifies the source file exists and, for formats the
// workbook package reads, that it has a header row. It returns the number
// of data rows, or -1 when the format is not inspected.
func (s *Syncer) checkSource(path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("source file: %w", err)
	}

	if !workbook.Supported(path) {
		return -1, nil
	}

	info, err := workbook.Inspect(path)
	if err != nil {
		return 0, err
	}

	return info.DataRows, nil
}

// Export downloads every table that has a sheet id into out_dir under its
// source file name and renames the worksheet named after the table to
// AUDIT. Tables without an id are skipped. The first failure stops the run.
func (s *Syncer) Export(ctx context.Context) (report *Report, err error) {
	report, err = s.begin(ctx, "get")
	if err != nil {
		return nil, err
	}

	defer func() { s.finish(report, err) }()

	for _, t := range s.cfg.Tables {
		res := TableResult{Table: t.Name, SheetID: t.SheetID, Path: s.exportPath(t)}

		if t.SheetID == 0 {
			s.logger.Warn("skipping table without sheet id", slog.String("table", t.Name))

			res.Status = StatusSkipped
			report.Results = append(report.Results, res)

			continue
		}

		if _, err := s.api.ExportSheet(ctx, t.SheetID, res.Path); err != nil {
			res.Status = StatusFailed
			res.Err = err
			report.Results = append(report.Results, res)

			return report, fmt.Errorf("tablesync: exporting %s: %w", t.Name, err)
		}

		if workbook.Supported(res.Path) {
			if err := workbook.RenameSheet(res.Path, t.Name, AuditSheetName); err != nil {
				res.Status = StatusFailed
				res.Err = err
				report.Results = append(report.Results, res)

				return report, fmt.Errorf("tablesync: preparing export of %s: %w", t.Name, err)
			}
		}

		s.logger.Info("table exported",
			slog.String("table", t.Name),
			slog.Int64("sheet_id", t.SheetID),
			slog.String("path", res.Path),
		)

		res.Status = StatusExported
		report.Results = append(report.Results, res)
	}

	return report, nil
}

// Attach uploads each table's source file as an attachment of its sheet.
// Tables without an id are skipped. The first failure stops the run.
func (s *Syncer) Attach(ctx context.Context) (report *Report, err error) {
	report, err = s.begin(ctx, "test")
	if err != nil {
		return nil, err
	}

	defer func() { s.finish(report, err) }()

	for _, t := range s.cfg.Tables {
		res := TableResult{Table: t.Name, SheetID: t.SheetID, Path: s.sourcePath(t)}

		if t.SheetID == 0 {
			s.logger.Warn("skipping table without sheet id", slog.String("table", t.Name))

			res.Status = StatusSkipped
			report.Results = append(report.Results, res)

			continue
		}

		att, err := s.api.AttachFile(ctx, t.SheetID, res.Path)
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			report.Results = append(report.Results, res)

			return report, fmt.Errorf("tablesync: attaching %s: %w", t.Name, err)
		}

		s.logger.Info("file attached",
			slog.String("table", t.Name),
			slog.Int64("sheet_id", t.SheetID),
			slog.Int64("attachment_id", att.ID),
		)

		res.Status = StatusAttached
		report.Results = append(report.Results, res)
	}

	return report, nil
}

// CleanupResult is the outcome of CleanupStaging.
type CleanupResult struct {
	Removed []StagingSheet
	Failed  []StagingSheet
}

// CleanupStaging deletes the staging sheets the journal still lists as
// open. A sheet that is already gone counts as removed. Failures are
// collected and returned joined after every sheet has been tried.
func (s *Syncer) CleanupStaging(ctx context.Context) (_ *CleanupResult, err error) {
	open, err := s.journal.OpenStaging(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.begin(ctx, "cleanup")
	if err != nil {
		return nil, err
	}

	defer func() { s.finish(report, err) }()

	out := &CleanupResult{}

	var errs []error

	for _, st := range open {
		res := TableResult{Table: st.Table, SheetID: st.SheetID, StagingID: st.SheetID}

		delErr := s.ops.DeleteSheet(ctx, st.SheetID)
		if delErr != nil && !errors.Is(delErr, sheets.ErrNotFound) {
			res.Status = StatusFailed
			res.Err = delErr
			report.Results = append(report.Results, res)
			out.Failed = append(out.Failed, st)
			errs = append(errs, fmt.Errorf("staging sheet %d (%s): %w", st.SheetID, st.Table, delErr))

			continue
		}

		if markErr := s.journal.MarkStagingRemoved(ctx, st.SheetID); markErr != nil {
			errs = append(errs, markErr)
		}

		s.logger.Info("staging sheet removed",
			slog.Int64("staging_sheet_id", st.SheetID),
			slog.String("table", st.Table),
		)

		res.Status = StatusRemoved
		report.Results = append(report.Results, res)
		out.Removed = append(out.Removed, st)
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("tablesync: cleanup: %w", errors.Join(errs...))
	}

	return out, nil
}

func (s *Syncer) sourcePath(t config.Table) string {
	return resolveIn(s.cfg.InDir, t.Src)
}

func (s *Syncer) exportPath(t config.Table) string {
	return resolveIn(s.cfg.OutDir, filepath.Base(t.Src))
}

func resolveIn(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(dir, name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
