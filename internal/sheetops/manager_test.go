package sheetops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sheetsync/internal/sheets"
	"github.com/tonimelisma/sheetsync/testutil"
)

func newFake(t *testing.T) (*testutil.FakeService, *sheets.Client) {
	t.Helper()

	fake := testutil.NewFakeService()
	t.Cleanup(fake.Close)

	return fake, sheets.NewClient(fake.URL(), http.DefaultClient, sheets.StaticToken("test-token"), nil)
}

func writeBook(t *testing.T, rows int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "budget.xlsx")
	require.NoError(t, testutil.WriteWorkbook(path, "Budget", []string{"Name"}, rows))

	return path
}

// Cascade mode: 4 rows re-parented under the first, then
// the first row deleted, which empties the sheet.
func TestClearSheet_CascadeReparentsThenDeletesFirstRow(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 5)
	first := target.Rows[0].ID

	m := NewManager(client, Options{}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	puts := fake.Requests(http.MethodPut, "/rows")
	require.Len(t, puts, 1)

	var updates []sheets.RowSpec
	require.NoError(t, json.Unmarshal(puts[0].Body, &updates))
	require.Len(t, updates, 4)

	for i, u := range updates {
		assert.Equal(t, target.Rows[i+1].ID, u.ID)
		assert.Equal(t, first, u.ParentID)
	}

	deletes := fake.Requests(http.MethodDelete, "/rows")
	require.Len(t, deletes, 1)
	assert.Equal(t, fmt.Sprintf("ids=%d&ignoreRowsNotFound=true", first), deletes[0].RawQuery)

	assert.Empty(t, fake.Sheet(target.ID).Rows)
}

// Keep-anchor mode: the first row survives blank.
func TestClearSheet_KeepAnchorBlanksFirstRow(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 5)
	first := target.Rows[0].ID

	m := NewManager(client, Options{ClearMode: ClearKeepAnchor}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	puts := fake.Requests(http.MethodPut, "/rows")
	require.Len(t, puts, 1)
	assert.Contains(t, string(puts[0].Body), fmt.Sprintf(`"id":%d`, first))

	deletes := fake.Requests(http.MethodDelete, "/rows")
	require.Len(t, deletes, 1)
	assert.NotContains(t, deletes[0].RawQuery, fmt.Sprint(first))

	after := fake.Sheet(target.ID)
	require.Len(t, after.Rows, 1)
	assert.Equal(t, first, after.Rows[0].ID)
	assert.Equal(t, "", after.Rows[0].Values[0])
}

func TestClearSheet_SingleRowCascadeSkipsUpdate(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 1)

	m := NewManager(client, Options{ClearMode: ClearCascade}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	assert.Empty(t, fake.Requests(http.MethodPut, "/rows"))
	assert.Len(t, fake.Requests(http.MethodDelete, "/rows"), 1)
	assert.Empty(t, fake.Sheet(target.ID).Rows)
}

func TestClearSheet_EmptySheetIsNoOp(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 0)

	m := NewManager(client, Options{}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	assert.Empty(t, fake.Requests(http.MethodPut, ""))
	assert.Empty(t, fake.Requests(http.MethodDelete, ""))
}

func TestClearSheet_MissingSheet(t *testing.T) {
	_, client := newFake(t)

	m := NewManager(client, Options{}, nil)
	err := m.ClearSheet(context.Background(), 424242)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTargetMissing)
}

func TestClearSheet_CascadeBatchesLargeSheets(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 251)

	m := NewManager(client, Options{}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	// 250 re-parent updates at 100 per request.
	assert.Len(t, fake.Requests(http.MethodPut, "/rows"), 3)
	assert.Len(t, fake.Requests(http.MethodDelete, "/rows"), 1)
	assert.Empty(t, fake.Sheet(target.ID).Rows)
}

// No assigned sheet: the file is imported into the folder under
// the table's own name.
func TestReplaceContents_NewSheet(t *testing.T) {
	fake, client := newFake(t)
	path := writeBook(t, 10)

	m := NewManager(client, Options{}, nil)
	rep, err := m.ReplaceContents(context.Background(), "Budget", path, 0, "9001")
	require.NoError(t, err)
	assert.True(t, rep.Created)
	assert.Zero(t, rep.StagingID)

	imports := fake.Requests(http.MethodPost, "/import")
	require.Len(t, imports, 1)
	assert.Equal(t, "/folders/9001/sheets/import", imports[0].Path)
	assert.Contains(t, imports[0].RawQuery, "sheetName=Budget&")

	created := fake.Sheet(rep.SheetID)
	require.NotNil(t, created)
	assert.Equal(t, "Budget", created.Name)
	assert.Equal(t, "9001", created.Folder)
	assert.Len(t, created.Rows, 10)

	assert.Empty(t, fake.Requests(http.MethodPost, "/rows/move"))
}

// 250 rows staged as TMP_<name>, target cleared, exactly two
// move batches (200 + 50), staging sheet deleted.
func TestReplaceContents_ExistingSheet(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 7)
	path := writeBook(t, 250)

	var staged, removed []int64

	m := NewManager(client, Options{Hooks: Hooks{
		OnStaged: func(_ context.Context, name string, id int64) {
			assert.Equal(t, "Budget", name)
			staged = append(staged, id)
		},
		OnStagingRemoved: func(_ context.Context, id int64) { removed = append(removed, id) },
	}}, nil)

	rep, err := m.ReplaceContents(context.Background(), "Budget", path, target.ID, "9001")
	require.NoError(t, err)
	assert.False(t, rep.Created)
	assert.Equal(t, target.ID, rep.SheetID)
	assert.Equal(t, 2, rep.MoveBatches)

	imports := fake.Requests(http.MethodPost, "/import")
	require.Len(t, imports, 1)
	assert.Equal(t, "/sheets/import", imports[0].Path, "staging import is not placed in a folder")
	assert.Contains(t, imports[0].RawQuery, "sheetName=TMP_Budget&")

	moves := fake.Requests(http.MethodPost, "/rows/move")
	require.Len(t, moves, 2)
	assert.Equal(t, fmt.Sprintf("/sheets/%d/rows/move", rep.StagingID), moves[0].Path)

	var body struct {
		RowIDs []int64 `json:"rowIds"`
		To     struct {
			SheetID int64 `json:"sheetId"`
		} `json:"to"`
	}

	require.NoError(t, json.Unmarshal(moves[0].Body, &body))
	assert.Len(t, body.RowIDs, 200)
	assert.Equal(t, target.ID, body.To.SheetID)

	require.NoError(t, json.Unmarshal(moves[1].Body, &body))
	assert.Len(t, body.RowIDs, 50)

	assert.Nil(t, fake.Sheet(rep.StagingID), "staging sheet deleted")
	assert.Equal(t, []int64{rep.StagingID}, staged)
	assert.Equal(t, []int64{rep.StagingID}, removed)

	after := fake.Sheet(target.ID)
	require.Len(t, after.Rows, 250)
	assert.Equal(t, "r1-c1", after.Rows[0].Values[0])
	assert.Equal(t, "r250-c1", after.Rows[249].Values[0])
	assert.Equal(t, []string{"Name"}, after.Titles, "columns untouched")
}

func TestReplaceContents_ImportRejected(t *testing.T) {
	fake, client := newFake(t)
	fake.ImportMessage = "PARTIAL_SUCCESS"
	target := fake.AddSheet("Budget", 3)
	path := writeBook(t, 5)

	m := NewManager(client, Options{}, nil)
	_, err := m.ReplaceContents(context.Background(), "Budget", path, target.ID, "")
	require.Error(t, err)

	var rejected *ImportRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "PARTIAL_SUCCESS", rejected.Message)

	// Target untouched.
	assert.Len(t, fake.Sheet(target.ID).Rows, 3)
	assert.Empty(t, fake.Requests(http.MethodDelete, ""))
}

func TestReplaceContents_ImportWithoutMessageProceeds(t *testing.T) {
	fake, client := newFake(t)
	fake.OmitImportMessage = true
	target := fake.AddSheet("Budget", 3)
	path := writeBook(t, 5)

	m := NewManager(client, Options{}, nil)
	rep, err := m.ReplaceContents(context.Background(), "Budget", path, target.ID, "")
	require.NoError(t, err)
	assert.Equal(t, target.ID, rep.SheetID)
	assert.Equal(t, 1, rep.MoveBatches)

	assert.Len(t, fake.Requests(http.MethodPost, "/rows/move"), 1)
	assert.Len(t, fake.Sheet(target.ID).Rows, 5)
	assert.Nil(t, fake.Sheet(rep.StagingID), "staging sheet deleted")
}

func TestReplaceContents_ImportTransportFailure(t *testing.T) {
	fake, client := newFake(t)
	fake.FailAfter(http.MethodPost, "/import", 0, http.StatusInternalServerError)
	target := fake.AddSheet("Budget", 3)
	path := writeBook(t, 5)

	m := NewManager(client, Options{}, nil)
	_, err := m.ReplaceContents(context.Background(), "Budget", path, target.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImportFailed)
	assert.ErrorIs(t, err, sheets.ErrServerError)

	var rejected *ImportRejectedError
	assert.False(t, errors.As(err, &rejected))
	assert.Len(t, fake.Sheet(target.ID).Rows, 3)
}

// A move failure leaves the staging sheet behind and reports it.
func TestReplaceContents_MoveFailureLeavesStagingSheet(t *testing.T) {
	fake, client := newFake(t)
	fake.FailAfter(http.MethodPost, "/rows/move", 1, http.StatusInternalServerError)
	target := fake.AddSheet("Budget", 3)
	path := writeBook(t, 250)

	var removed int

	m := NewManager(client, Options{Hooks: Hooks{
		OnStagingRemoved: func(context.Context, int64) { removed++ },
	}}, nil)

	_, err := m.ReplaceContents(context.Background(), "Budget", path, target.ID, "")
	require.Error(t, err)

	var staging *StagingError
	require.ErrorAs(t, err, &staging)
	assert.Equal(t, "move rows", staging.Step)
	assert.ErrorIs(t, err, sheets.ErrServerError)

	left := fake.Sheet(staging.StagingID)
	require.NotNil(t, left, "staging sheet left for cleanup")
	assert.Equal(t, "TMP_Budget", left.Name)
	assert.Len(t, left.Rows, 50)

	// The first batch landed and was not rolled back.
	assert.Len(t, fake.Sheet(target.ID).Rows, 200)
	assert.Zero(t, removed)
}

func TestReplaceContents_TargetVanished(t *testing.T) {
	fake, client := newFake(t)
	path := writeBook(t, 5)

	m := NewManager(client, Options{}, nil)
	_, err := m.ReplaceContents(context.Background(), "Budget", path, 777, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTargetMissing)

	var staging *StagingError
	require.ErrorAs(t, err, &staging)
	assert.NotNil(t, fake.Sheet(staging.StagingID))
}

func TestDeleteSheet_FailureReturned(t *testing.T) {
	fake, client := newFake(t)
	fake.FailAfter(http.MethodDelete, "", 0, http.StatusForbidden)
	s := fake.AddSheet("Budget", 0)

	m := NewManager(client, Options{}, nil)
	err := m.DeleteSheet(context.Background(), s.ID)
	assert.ErrorIs(t, err, sheets.ErrForbidden)
	assert.Len(t, fake.Requests(http.MethodDelete, ""), 1, "not retried")
}

func TestParseClearMode(t *testing.T) {
	mode, err := ParseClearMode("")
	require.NoError(t, err)
	assert.Equal(t, ClearCascade, mode)

	mode, err = ParseClearMode("keep_anchor")
	require.NoError(t, err)
	assert.Equal(t, ClearKeepAnchor, mode)

	_, err = ParseClearMode("nuke")
	assert.Error(t, err)
}

func TestNewManager_DefaultsCascade(t *testing.T) {
	m := NewManager(nil, Options{}, nil)
	assert.Equal(t, ClearCascade, m.opts.ClearMode)
	assert.NotNil(t, m.logger)
}

func TestClearSheet_ReadsFullSheet(t *testing.T) {
	fake, client := newFake(t)
	target := fake.AddSheet("Budget", 2)

	m := NewManager(client, Options{}, nil)
	require.NoError(t, m.ClearSheet(context.Background(), target.ID))

	gets := fake.Requests(http.MethodGet, fmt.Sprintf("/sheets/%d", target.ID))
	require.NotEmpty(t, gets)
	assert.Empty(t, gets[0].RawQuery)
}
