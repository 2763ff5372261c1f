package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sheetsync/internal/tablesync"
)

func TestPrintTable_Aligns(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"TABLE", "SHEET"}, [][]string{
		{"Budget", "42"},
		{"A", "-"},
	})

	assert.Equal(t, "TABLE   SHEET\nBudget  42\nA       -\n", buf.String())
}

func TestFormatSheetID(t *testing.T) {
	assert.Equal(t, "-", formatSheetID(0))
	assert.Equal(t, "4583173393803140", formatSheetID(4583173393803140))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))

	old := time.Date(2019, time.March, 4, 10, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  4  2019", formatTime(old))

	now := time.Now()
	recent := time.Date(now.Year(), time.January, 15, 8, 5, 0, 0, time.Local)
	assert.Equal(t, "Jan 15 08:05", formatTime(recent))
}

func sampleReport() *tablesync.Report {
	return &tablesync.Report{
		RunID:   "run-1",
		Command: "set",
		Aborted: true,
		Results: []tablesync.TableResult{
			{Table: "A", SheetID: 11, Status: tablesync.StatusCreated, Rows: 3, Path: "/in/a.xlsx"},
			{Table: "B", SheetID: 12, Status: tablesync.StatusFailed, Err: errors.New("import rejected")},
		},
	}
}

func TestPrintReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), false))

	out := buf.String()
	assert.Contains(t, out, "TABLE  SHEET  STATUS   DETAIL\n")
	assert.Contains(t, out, "A      11     created  /in/a.xlsx\n")
	assert.Contains(t, out, "B      12     failed   import rejected\n")
	assert.Contains(t, out, "Run aborted")
}

func TestPrintReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), true))

	var got reportJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.Aborted)
	require.Len(t, got.Tables, 2)
	assert.Equal(t, "created", got.Tables[0].Status)
	assert.Equal(t, 3, got.Tables[0].Rows)
	assert.Equal(t, "import rejected", got.Tables[1].Error)
}
