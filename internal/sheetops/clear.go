package sheetops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/sheetsync/internal/sheets"
)

// ClearMode selects how ClearSheet empties a sheet.
type ClearMode string

const (
	// ClearCascade re-parents every row under the first row and then
	// deletes the first row. The service removes a parent's descendants
	// with it, so the sheet ends up with no rows.
	ClearCascade ClearMode = "cascade"
	// ClearKeepAnchor blanks the first row and deletes every other row,
	// leaving one empty row behind.
	ClearKeepAnchor ClearMode = "keep_anchor"
)

// ParseClearMode validates s. The empty string maps to ClearCascade.
func ParseClearMode(s string) (ClearMode, error) {
	switch ClearMode(s) {
	case "", ClearCascade:
		return ClearCascade, nil
	case ClearKeepAnchor:
		return ClearKeepAnchor, nil
	default:
		return "", fmt.Errorf("sheetops: unknown clear mode %q (want %q or %q)", s, ClearCascade, ClearKeepAnchor)
	}
}

// ClearSheet removes the rows of a sheet according to the manager's
// ClearMode. A missing sheet yields ErrTargetMissing; a sheet without rows
// is left alone.
func (m *Manager) ClearSheet(ctx context.Context, sheetID int64) error {
	sheet, err := m.api.GetSheet(ctx, sheetID, time.Time{})
	if isNotFound(err) {
		m.logger.Error("sheet to clear not found", slog.Int64("sheet_id", sheetID))
		return fmt.Errorf("%w: %d", ErrTargetMissing, sheetID)
	}

	if err != nil {
		return fmt.Errorf("sheetops: reading sheet %d: %w", sheetID, err)
	}

	if len(sheet.Rows) == 0 {
		m.logger.Info("sheet already empty", slog.Int64("sheet_id", sheetID))
		return nil
	}

	m.logger.Info("clearing sheet",
		slog.Int64("sheet_id", sheetID),
		slog.Int("rows", len(sheet.Rows)),
		slog.String("mode", string(m.opts.ClearMode)),
	)

	if m.opts.ClearMode == ClearKeepAnchor {
		return m.clearKeepAnchor(ctx, sheet)
	}

	return m.clearCascade(ctx, sheet)
}

func (m *Manager) clearCascade(ctx context.Context, sheet *sheets.Sheet) error {
	anchor := sheet.Rows[0].ID

	if len(sheet.Rows) > 1 {
		updates := make([]sheets.RowSpec, 0, len(sheet.Rows)-1)
		for _, row := range sheet.Rows[1:] {
			updates = append(updates, sheets.RowSpec{ID: row.ID, ParentID: anchor})
		}

		if _, err := m.api.UpdateRows(ctx, sheet.ID, updates, sheets.MaxUpdateRows); err != nil {
			return fmt.Errorf("sheetops: re-parenting rows of sheet %d: %w", sheet.ID, err)
		}
	}

	if _, err := m.api.DeleteRows(ctx, sheet.ID, []int64{anchor}, sheets.MaxDeleteRows); err != nil {
		return fmt.Errorf("sheetops: deleting anchor row of sheet %d: %w", sheet.ID, err)
	}

	return nil
}

func (m *Manager) clearKeepAnchor(ctx context.Context, sheet *sheets.Sheet) error {
	anchor := sheet.Rows[0]

	blank := sheets.RowSpec{ID: anchor.ID, Cells: make([]sheets.CellSpec, 0, len(sheet.Columns))}
	for _, col := range sheet.Columns {
		blank.Cells = append(blank.Cells, sheets.CellSpec{ColumnID: col.ID, Value: ""})
	}

	if len(blank.Cells) > 0 {
		if _, err := m.api.UpdateRows(ctx, sheet.ID, []sheets.RowSpec{blank}, sheets.MaxUpdateRows); err != nil {
			return fmt.Errorf("sheetops: blanking anchor row of sheet %d: %w", sheet.ID, err)
		}
	}

	if len(sheet.Rows) == 1 {
		return nil
	}

	rest := make([]int64, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rest = append(rest, row.ID)
	}

	if _, err := m.api.DeleteRows(ctx, sheet.ID, rest, sheets.MaxDeleteRows); err != nil {
		return fmt.Errorf("sheetops: deleting rows of sheet %d: %w", sheet.ID, err)
	}

	return nil
}
