// Package workbook inspects and edits local spreadsheet files with excelize.
// Only the Office Open XML formats (.xlsx, .xlsm) are handled; legacy .xls
// files are reported as unsupported.
package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for files excelize cannot open.
	ErrUnsupportedFormat = errors.New("workbook: unsupported file format")
	// ErrSheetMissing is returned when a named worksheet does not exist.
	ErrSheetMissing = errors.New("workbook: worksheet not found")
	// ErrNoHeader is returned when the first worksheet has no header row.
	ErrNoHeader = errors.New("workbook: first worksheet has no header row")
)

// Info summarizes a workbook as an import would see it: the first
// worksheet, its first row as the header and every later row as data.
type Info struct {
	Sheets   []string
	Header   []string
	DataRows int
}

// Supported reports whether path has an extension this package can open.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// Inspect reads the workbook at path and reports its shape.
func Inspect(path string) (*Info, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: opening %s: %w", path, err)
	}
	defer book.Close()

	info := &Info{Sheets: book.GetSheetList()}
	if len(info.Sheets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHeader, path)
	}

	rows, err := book.GetRows(info.Sheets[0])
	if err != nil {
		return nil, fmt.Errorf("workbook: reading %s: %w", path, err)
	}

	if len(rows) == 0 || blank(rows[0]) {
		return nil, fmt.Errorf("%w: %s", ErrNoHeader, path)
	}

	info.Header = rows[0]

	for _, row := range rows[1:] {
		if !blank(row) {
			info.DataRows++
		}
	}

	return info, nil
}

// RenameSheet renames the worksheet from to to and saves the file in place.
// The lookup is exact first, then case-insensitive. The file is written to a
// temp file and renamed so a failure leaves the original intact.
func RenameSheet(path, from, to string) error {
	if !Supported(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("workbook: opening %s: %w", path, err)
	}
	defer book.Close()

	name, ok := findSheet(book.GetSheetList(), from)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrSheetMissing, from, filepath.Base(path))
	}

	if name == to {
		return nil
	}

	if err := book.SetSheetName(name, to); err != nil {
		return fmt.Errorf("workbook: renaming %q to %q: %w", name, to, err)
	}

	tmp := filepath.Join(filepath.Dir(path), ".rename-"+filepath.Base(path))
	if err := book.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("workbook: saving %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("workbook: replacing %s: %w", path, err)
	}

	return nil
}

func findSheet(names []string, want string) (string, bool) {
	for _, n := range names {
		if n == want {
			return n, true
		}
	}

	for _, n := range names {
		if strings.EqualFold(n, want) {
			return n, true
		}
	}

	return "", false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
