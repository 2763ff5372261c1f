package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook writes an .xlsx file at path with one worksheet named
// sheet: a header row followed by n generated data rows.
func WriteWorkbook(path, sheet string, header []string, n int) error {
	book := excelize.NewFile()
	defer book.Close()

	if sheet != "Sheet1" {
		if err := book.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("naming worksheet: %w", err)
		}
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}

	if err := book.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range n {
		row := make([]any, len(header))
		for j := range row {
			row[j] = fmt.Sprintf("r%d-c%d", i+1, j+1)
		}

		if err := book.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}

	return nil
}
