package sheets

import (
	"log/slog"
	"time"
)

// Per-request item caps enforced by the service. These are policy
// constants, not negotiated.
const (
	MaxAddRows    = 500
	MaxUpdateRows = 100
	MaxDeleteRows = 100
	MaxMoveRows   = 200
)

// ImportSuccess is the message the service returns for a clean import.
const ImportSuccess = "SUCCESS"

// Sheet is a remote sheet with its columns and rows.
type Sheet struct {
	ID            int64
	Name          string
	Permalink     string
	TotalRowCount int
	Columns       []Column
	Rows          []Row
	ModifiedAt    time.Time
}

// RowIDs returns the IDs of all rows in sheet order.
func (s *Sheet) RowIDs() []int64 {
	ids := make([]int64, 0, len(s.Rows))
	for i := range s.Rows {
		ids = append(ids, s.Rows[i].ID)
	}

	return ids
}

// Row belongs to exactly one sheet. ParentID is zero for top-level rows.
type Row struct {
	ID         int64
	ParentID   int64
	RowNumber  int
	Cells      []Cell
	ModifiedAt time.Time
	ModifiedBy string
}

// Cell is a single value keyed by column.
type Cell struct {
	ColumnID     int64
	Value        any
	DisplayValue string
}

// Column is a typed, positioned field of a sheet.
type Column struct {
	ID      int64
	Title   string
	Type    string
	Index   int
	Primary bool
}

// SheetSummary is one entry of ListSheets.
type SheetSummary struct {
	ID         int64
	Name       string
	Permalink  string
	ModifiedAt time.Time
}

// RowSpec is the outbound payload for adding or updating a row.
// ID is required for updates and must be zero for adds.
type RowSpec struct {
	ID       int64      `json:"id,omitempty"`
	ParentID int64      `json:"parentId,omitempty"`
	ToTop    bool       `json:"toTop,omitempty"`
	ToBottom bool       `json:"toBottom,omitempty"`
	Cells    []CellSpec `json:"cells,omitempty"`
}

// CellSpec sets one cell. A nil Value clears the cell.
type CellSpec struct {
	ColumnID int64 `json:"columnId"`
	Value    any   `json:"value"`
}

// ColumnPatch holds the column fields to change; nil fields are left alone.
type ColumnPatch struct {
	Title *string `json:"title,omitempty"`
	Type  *string `json:"type,omitempty"`
	Index *int    `json:"index,omitempty"`
}

// SheetSpec describes a sheet to create.
type SheetSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec describes a column of a sheet to create.
type ColumnSpec struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Primary bool   `json:"primary,omitempty"`
}

// ImportResult is the outcome of a file import. Message is "SUCCESS" when
// the service accepted the file without reservations. HasMessage is false
// when the response carried no message at all.
type ImportResult struct {
	Message    string
	HasMessage bool
	ResultCode int
	SheetID    int64
	SheetName  string
}

// Rejected reports whether the service answered with a message other than
// SUCCESS. A response without a message is not a rejection.
func (r *ImportResult) Rejected() bool {
	return r.HasMessage && r.Message != ImportSuccess
}

// DeleteResult is the outcome of one delete-rows chunk.
type DeleteResult struct {
	Requested []int64
	Deleted   []int64
}

// Attachment is a file attached to a sheet.
type Attachment struct {
	ID       int64
	Name     string
	MimeType string
	SizeInKB int64
}

// Export describes a sheet downloaded as a spreadsheet file.
type Export struct {
	SheetID     int64
	Path        string
	Bytes       int64
	ContentType string
}

// Wire types. Unexported; callers use the normalized types above.

type sheetResponse struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Permalink     string           `json:"permalink"`
	TotalRowCount int              `json:"totalRowCount"`
	ModifiedAt    string           `json:"modifiedAt"`
	Columns       []columnResponse `json:"columns"`
	Rows          []rowResponse    `json:"rows"`
}

type columnResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Primary bool   `json:"primary"`
}

type rowResponse struct {
	ID         int64          `json:"id"`
	ParentID   int64          `json:"parentId"`
	RowNumber  int            `json:"rowNumber"`
	ModifiedAt string         `json:"modifiedAt"`
	ModifiedBy *userResponse  `json:"modifiedBy"`
	Cells      []cellResponse `json:"cells"`
}

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type cellResponse struct {
	ColumnID     int64  `json:"columnId"`
	Value        any    `json:"value"`
	DisplayValue string `json:"displayValue"`
}

type sheetListResponse struct {
	TotalCount int                    `json:"totalCount"`
	Data       []sheetSummaryResponse `json:"data"`
}

type sheetSummaryResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Permalink  string `json:"permalink"`
	ModifiedAt string `json:"modifiedAt"`
}

type columnListResponse struct {
	Data []columnResponse `json:"data"`
}

// resultEnvelope is the generic {"message", "resultCode", "result"} wrapper
// the service returns from mutations.
type resultEnvelope[T any] struct {
	Message    string `json:"message"`
	ResultCode int    `json:"resultCode"`
	Result     T      `json:"result"`
}

// importEnvelope keeps message optional so an absent message can be told
// apart from an empty one.
type importEnvelope struct {
	Message    *string       `json:"message"`
	ResultCode int           `json:"resultCode"`
	Result     importedSheet `json:"result"`
}

type importedSheet struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type attachmentResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	SizeInKB int64  `json:"sizeInKb"`
}

type moveRowsRequest struct {
	RowIDs []int64         `json:"rowIds"`
	To     moveDestination `json:"to"`
}

type moveDestination struct {
	SheetID int64 `json:"sheetId"`
}

type renameSheetRequest struct {
	Name string `json:"name"`
}

func (s *sheetResponse) toSheet(logger *slog.Logger) Sheet {
	sheet := Sheet{
		ID:            s.ID,
		Name:          s.Name,
		Permalink:     s.Permalink,
		TotalRowCount: s.TotalRowCount,
		ModifiedAt:    parseTimestamp(s.ModifiedAt, "modifiedAt", s.ID, logger),
		Columns:       make([]Column, 0, len(s.Columns)),
		Rows:          make([]Row, 0, len(s.Rows)),
	}

	for i := range s.Columns {
		sheet.Columns = append(sheet.Columns, s.Columns[i].toColumn())
	}

	for i := range s.Rows {
		sheet.Rows = append(sheet.Rows, s.Rows[i].toRow(logger))
	}

	return sheet
}

func (c *columnResponse) toColumn() Column {
	return Column{
		ID:      c.ID,
		Title:   c.Title,
		Type:    c.Type,
		Index:   c.Index,
		Primary: c.Primary,
	}
}

func (r *rowResponse) toRow(logger *slog.Logger) Row {
	row := Row{
		ID:         r.ID,
		ParentID:   r.ParentID,
		RowNumber:  r.RowNumber,
		ModifiedAt: parseTimestamp(r.ModifiedAt, "modifiedAt", r.ID, logger),
		Cells:      make([]Cell, 0, len(r.Cells)),
	}

	// writerInfo is only present when rows were requested with include=writerInfo.
	if r.ModifiedBy != nil {
		row.ModifiedBy = r.ModifiedBy.Email
	}

	for _, c := range r.Cells {
		row.Cells = append(row.Cells, Cell{
			ColumnID:     c.ColumnID,
			Value:        c.Value,
			DisplayValue: c.DisplayValue,
		})
	}

	return row
}

func (s *sheetSummaryResponse) toSummary(logger *slog.Logger) SheetSummary {
	return SheetSummary{
		ID:         s.ID,
		Name:       s.Name,
		Permalink:  s.Permalink,
		ModifiedAt: parseTimestamp(s.ModifiedAt, "modifiedAt", s.ID, logger),
	}
}

// parseTimestamp parses an RFC3339 timestamp. Missing values yield the zero
// time; malformed values are logged and also yield the zero time.
func parseTimestamp(raw, field string, id int64, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid timestamp",
			slog.String("field", field),
			slog.Int64("id", id),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}
