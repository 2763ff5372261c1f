package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

func sheetPath(sheetID int64) string {
	return fmt.Sprintf("/sheets/%d", sheetID)
}

// GetSheet fetches a sheet with all of its rows and columns. When since is
// non-zero, only rows modified after it are returned and writer info is
// requested. A missing sheet yields ErrNotFound.
func (c *Client) GetSheet(ctx context.Context, sheetID int64, since time.Time) (*Sheet, error) {
	c.logger.Debug("getting sheet",
		slog.Int64("sheet_id", sheetID),
		slog.Time("since", since),
	)

	r := &request{method: http.MethodGet, path: sheetPath(sheetID)}
	if !since.IsZero() {
		r.rawQuery = "rowsModifiedSince=" + url.QueryEscape(since.UTC().Format(time.RFC3339)) +
			"&include=writerInfo"
	}

	var sr sheetResponse
	if err := c.doJSON(ctx, r, &sr); err != nil {
		return nil, err
	}

	sheet := sr.toSheet(c.logger)

	return &sheet, nil
}

// ListSheets returns every sheet visible to the token's user.
func (c *Client) ListSheets(ctx context.Context) ([]SheetSummary, error) {
	c.logger.Info("listing sheets")

	r := &request{method: http.MethodGet, path: "/sheets", rawQuery: "includeAll=true"}

	var lr sheetListResponse
	if err := c.doJSON(ctx, r, &lr); err != nil {
		return nil, err
	}

	out := make([]SheetSummary, 0, len(lr.Data))
	for i := range lr.Data {
		out = append(out, lr.Data[i].toSummary(c.logger))
	}

	c.logger.Info("listed sheets", slog.Int("total", len(out)))

	return out, nil
}

// GetColumns returns the columns of a sheet, or ErrNotFound.
func (c *Client) GetColumns(ctx context.Context, sheetID int64) ([]Column, error) {
	c.logger.Debug("getting columns", slog.Int64("sheet_id", sheetID))

	r := &request{method: http.MethodGet, path: sheetPath(sheetID) + "/columns"}

	var lr columnListResponse
	if err := c.doJSON(ctx, r, &lr); err != nil {
		return nil, err
	}

	cols := make([]Column, 0, len(lr.Data))
	for i := range lr.Data {
		cols = append(cols, lr.Data[i].toColumn())
	}

	return cols, nil
}

// UpdateColumn applies patch to one column and returns the updated column,
// or ErrNotFound when the sheet or column does not exist.
func (c *Client) UpdateColumn(ctx context.Context, sheetID, columnID int64, patch ColumnPatch) (*Column, error) {
	c.logger.Info("updating column",
		slog.Int64("sheet_id", sheetID),
		slog.Int64("column_id", columnID),
	)

	r, err := jsonRequest(http.MethodPut, fmt.Sprintf("%s/columns/%d", sheetPath(sheetID), columnID), patch)
	if err != nil {
		return nil, err
	}

	var env resultEnvelope[columnResponse]
	if err := c.doJSON(ctx, r, &env); err != nil {
		return nil, err
	}

	col := env.Result.toColumn()

	return &col, nil
}

// CreateSheet creates an empty sheet with the given columns inside a folder.
func (c *Client) CreateSheet(ctx context.Context, folderID string, spec SheetSpec) (*Sheet, error) {
	c.logger.Info("creating sheet",
		slog.String("folder_id", folderID),
		slog.String("name", spec.Name),
	)

	r, err := jsonRequest(http.MethodPost, "/folders/"+url.PathEscape(folderID)+"/sheets", spec)
	if err != nil {
		return nil, err
	}

	var env resultEnvelope[sheetResponse]
	if err := c.doJSON(ctx, r, &env); err != nil {
		return nil, err
	}

	sheet := env.Result.toSheet(c.logger)

	return &sheet, nil
}

// RenameSheet changes a sheet's name.
func (c *Client) RenameSheet(ctx context.Context, sheetID int64, name string) error {
	c.logger.Info("renaming sheet",
		slog.Int64("sheet_id", sheetID),
		slog.String("name", name),
	)

	r, err := jsonRequest(http.MethodPut, sheetPath(sheetID), renameSheetRequest{Name: normalizeName(name)})
	if err != nil {
		return err
	}

	return c.doJSON(ctx, r, nil)
}

// DeleteSheet deletes a sheet unconditionally.
func (c *Client) DeleteSheet(ctx context.Context, sheetID int64) error {
	c.logger.Info("deleting sheet", slog.Int64("sheet_id", sheetID))

	return c.doJSON(ctx, &request{method: http.MethodDelete, path: sheetPath(sheetID)}, nil)
}
