package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// runBatches partitions items into chunks of size and calls send for each
// chunk in order, stopping at the first failure. Chunks already sent are
// not rolled back. Returns the number of chunks sent successfully.
func runBatches[T any](
	ctx context.Context, logger *slog.Logger, op string, sheetID int64,
	items []T, size int, send func(ctx context.Context, part []T) error,
) (int, error) {
	parts := chunk(items, size)

	for i, part := range parts {
		if ctx.Err() != nil {
			return i, fmt.Errorf("sheets: %s: %w", op, context.Cause(ctx))
		}

		logger.Debug("sending batch",
			slog.String("op", op),
			slog.Int64("sheet_id", sheetID),
			slog.Int("batch", i+1),
			slog.Int("batches", len(parts)),
			slog.Int("items", len(part)),
		)

		if err := send(ctx, part); err != nil {
			logger.Error("batch failed, earlier batches remain applied",
				slog.String("op", op),
				slog.Int64("sheet_id", sheetID),
				slog.Int("batch", i+1),
				slog.Int("batches", len(parts)),
			)

			return i, fmt.Errorf("sheets: %s on sheet %d (batch %d of %d): %w", op, sheetID, i+1, len(parts), err)
		}
	}

	return len(parts), nil
}

// hasRows reports whether the sheet exists and has at least one row.
// Add and update are skipped otherwise.
func (c *Client) hasRows(ctx context.Context, sheetID int64) (bool, error) {
	sheet, err := c.GetSheet(ctx, sheetID, time.Time{})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return len(sheet.Rows) > 0, nil
}

// AddRows appends rows to a sheet in chunks of at most batchSize (capped at
// MaxAddRows). Nothing is sent when the sheet is missing or has no rows.
// Returns the number of requests issued.
func (c *Client) AddRows(ctx context.Context, sheetID int64, rows []RowSpec, batchSize int) (int, error) {
	ok, err := c.hasRows(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	if !ok {
		c.logger.Info("sheet has no rows, skipping add",
			slog.Int64("sheet_id", sheetID),
			slog.Int("rows", len(rows)),
		)

		return 0, nil
	}

	c.logger.Info("adding rows",
		slog.Int64("sheet_id", sheetID),
		slog.Int("rows", len(rows)),
	)

	return runBatches(ctx, c.logger, "add rows", sheetID, rows, clampBatch(batchSize, MaxAddRows),
		func(ctx context.Context, part []RowSpec) error {
			r, err := jsonRequest(http.MethodPost, sheetPath(sheetID)+"/rows", part)
			if err != nil {
				return err
			}

			return c.doJSON(ctx, r, nil)
		})
}

// UpdateRows updates rows in chunks of at most batchSize (capped at
// MaxUpdateRows). Nothing is sent when the sheet is missing or has no rows.
// Returns the number of requests issued.
func (c *Client) UpdateRows(ctx context.Context, sheetID int64, updates []RowSpec, batchSize int) (int, error) {
	ok, err := c.hasRows(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	if !ok {
		c.logger.Info("sheet has no rows, skipping update",
			slog.Int64("sheet_id", sheetID),
			slog.Int("rows", len(updates)),
		)

		return 0, nil
	}

	c.logger.Info("updating rows",
		slog.Int64("sheet_id", sheetID),
		slog.Int("rows", len(updates)),
	)

	return runBatches(ctx, c.logger, "update rows", sheetID, updates, clampBatch(batchSize, MaxUpdateRows),
		func(ctx context.Context, part []RowSpec) error {
			r, err := jsonRequest(http.MethodPut, sheetPath(sheetID)+"/rows", part)
			if err != nil {
				return err
			}

			return c.doJSON(ctx, r, nil)
		})
}

// DeleteRows deletes rows by ID in chunks of at most batchSize (capped at
// MaxDeleteRows). Every request sets ignoreRowsNotFound so IDs that are
// already gone do not fail the call. Returns one result per chunk sent.
func (c *Client) DeleteRows(ctx context.Context, sheetID int64, rowIDs []int64, batchSize int) ([]DeleteResult, error) {
	c.logger.Info("deleting rows",
		slog.Int64("sheet_id", sheetID),
		slog.Int("rows", len(rowIDs)),
	)

	var results []DeleteResult

	_, err := runBatches(ctx, c.logger, "delete rows", sheetID, rowIDs, clampBatch(batchSize, MaxDeleteRows),
		func(ctx context.Context, part []int64) error {
			var env resultEnvelope[[]int64]

			err := c.doJSON(ctx, &request{
				method:   http.MethodDelete,
				path:     sheetPath(sheetID) + "/rows",
				rawQuery: "ids=" + joinIDs(part) + "&ignoreRowsNotFound=true",
			}, &env)
			if err != nil {
				return err
			}

			results = append(results, DeleteResult{Requested: part, Deleted: env.Result})

			return nil
		})

	return results, err
}

// DeleteAllRows deletes every row of a sheet. A missing or empty sheet is
// not an error.
func (c *Client) DeleteAllRows(ctx context.Context, sheetID int64) ([]DeleteResult, error) {
	sheet, err := c.GetSheet(ctx, sheetID, time.Time{})
	if errors.Is(err, ErrNotFound) {
		c.logger.Warn("sheet not found, nothing to delete", slog.Int64("sheet_id", sheetID))
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if len(sheet.Rows) == 0 {
		c.logger.Info("no rows to delete", slog.Int64("sheet_id", sheetID))
		return nil, nil
	}

	return c.DeleteRows(ctx, sheetID, sheet.RowIDs(), MaxDeleteRows)
}

// MoveRows moves every row of the source sheet to the target sheet in
// chunks of at most batchSize (capped at MaxMoveRows). A missing source is
// not an error. Returns the number of requests issued.
func (c *Client) MoveRows(ctx context.Context, targetSheetID, sourceSheetID int64, batchSize int) (int, error) {
	source, err := c.GetSheet(ctx, sourceSheetID, time.Time{})
	if errors.Is(err, ErrNotFound) {
		c.logger.Warn("source sheet not found, nothing to move",
			slog.Int64("source_sheet_id", sourceSheetID),
		)

		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	rowIDs := source.RowIDs()

	c.logger.Info("moving rows",
		slog.Int64("source_sheet_id", sourceSheetID),
		slog.Int64("target_sheet_id", targetSheetID),
		slog.Int("rows", len(rowIDs)),
	)

	return runBatches(ctx, c.logger, "move rows", sourceSheetID, rowIDs, clampBatch(batchSize, MaxMoveRows),
		func(ctx context.Context, part []int64) error {
			r, err := jsonRequest(http.MethodPost, sheetPath(sourceSheetID)+"/rows/move", moveRowsRequest{
				RowIDs: part,
				To:     moveDestination{SheetID: targetSheetID},
			})
			if err != nil {
				return err
			}

			r.timeout = TimeoutMove

			return c.doJSON(ctx, r, nil)
		})
}

// joinIDs renders row IDs as a comma-separated list.
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	return strings.Join(parts, ",")
}
