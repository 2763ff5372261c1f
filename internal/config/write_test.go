package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assignmentConfig = `# team sheets
target_folder = "1234"

[env]
SMARTSHEET_ACCESS_TOKEN = "secret"

# monthly budget, owned by finance
[tables.Budget]
id = ""
src = "budget.xlsx"

# new this quarter
[tables."Head Count"]
src = "headcount.xlsx" # no id yet

[tables.Inventory]
id = "77"
src = "inventory.xlsx"
`

func TestApplyAssignments_PreservesLayout(t *testing.T) {
	path := writeTestConfig(t, assignmentConfig)

	err := ApplyAssignments(path, []Assignment{
		{Table: "Budget", SheetID: 4583173393803140},
		{Table: "Head Count", SheetID: 99},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := `# team sheets
target_folder = "1234"

[env]
SMARTSHEET_ACCESS_TOKEN = "secret"

# monthly budget, owned by finance
[tables.Budget]
id = "4583173393803140"
src = "budget.xlsx"

# new this quarter
[tables."Head Count"]
id = "99"
src = "headcount.xlsx" # no id yet

[tables.Inventory]
id = "77"
src = "inventory.xlsx"
`
	assert.Equal(t, want, string(data))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	budget, _ := snap.Table("Budget")
	assert.Equal(t, int64(4583173393803140), budget.SheetID)

	hc, _ := snap.Table("Head Count")
	assert.Equal(t, int64(99), hc.SheetID)

	inv, _ := snap.Table("Inventory")
	assert.Equal(t, int64(77), inv.SheetID)
}

func TestApplyAssignments_KeepsPermissions(t *testing.T) {
	path := writeTestConfig(t, assignmentConfig)
	require.NoError(t, os.Chmod(path, 0o640))

	require.NoError(t, ApplyAssignments(path, []Assignment{{Table: "Budget", SheetID: 1}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")
}

func TestApplyAssignments_MissingSection(t *testing.T) {
	path := writeTestConfig(t, `tables = { Budget = { src = "budget.xlsx" } }`)

	err := ApplyAssignments(path, []Assignment{{Table: "Budget", SheetID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "Budget" not found`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `tables = { Budget = { src = "budget.xlsx" } }`, string(data), "file untouched")
}

const inlineConfig = `target_folder = "1234"

[tables]
Budget = { id = "", src = "budget.xlsx" }
"Head Count" = { src = "headcount.xlsx" } # no id yet
Empty = {}
`

func TestApplyAssignments_InlineTables(t *testing.T) {
	path := writeTestConfig(t, inlineConfig)

	require.NoError(t, ApplyAssignments(path, []Assignment{
		{Table: "Budget", SheetID: 111},
		{Table: "Head Count", SheetID: 222},
		{Table: "Empty", SheetID: 333},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `target_folder = "1234"

[tables]
Budget = { id = "111", src = "budget.xlsx" }
"Head Count" = { id = "222", src = "headcount.xlsx" } # no id yet
Empty = { id = "333" }
`, string(data))
}

func TestApplyAssignments_InlineRoundTrip(t *testing.T) {
	path := writeTestConfig(t, `
[tables]
Budget = { id = "", src = "budget.xlsx" }
`)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 1)
	assert.Zero(t, snap.Tables[0].SheetID)

	require.NoError(t, ApplyAssignments(path, []Assignment{{Table: "Budget", SheetID: 4242}}))

	snap, err = LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), snap.Tables[0].SheetID)
}

func TestApplyAssignments_SavesWhatItCan(t *testing.T) {
	path := writeTestConfig(t, assignmentConfig)

	err := ApplyAssignments(path, []Assignment{
		{Table: "Ghost", SheetID: 1},
		{Table: "Budget", SheetID: 555},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "Ghost" not found`)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	budget, ok := snap.Table("Budget")
	require.True(t, ok)
	assert.Equal(t, int64(555), budget.SheetID, "later assignment still saved")
}

func TestLoadSnapshot_RejectsUnwritableTables(t *testing.T) {
	path := writeTestConfig(t, `
[tables]
Budget.src = "budget.xlsx"
`)

	_, err := LoadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "Budget": define it as a [tables.Budget] section`)
}

func TestLoadSnapshot_AssignedDottedTableIsAccepted(t *testing.T) {
	path := writeTestConfig(t, `
[tables]
Budget.id = "9"
Budget.src = "budget.xlsx"
`)

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, int64(9), snap.Tables[0].SheetID)
}

func TestSetInlineID(t *testing.T) {
	assert.Equal(t, `A = { id = "1", src = "a" }`, setInlineID(`A = { id = "", src = "a" }`, `"1"`))
	assert.Equal(t, `A = {src = "a", id = "1"}`, setInlineID(`A = {src = "a", id = 7}`, `"1"`))
	assert.Equal(t, `A = { id = "1", src = "a" }`, setInlineID(`A = { src = "a" }`, `"1"`))
	assert.Equal(t, `A = { id = "1" }`, setInlineID(`A = {}`, `"1"`))
}

func TestFindInlineTable_StopsAtNextSection(t *testing.T) {
	lines := []string{
		"[tables]",
		`A = { src = "a" }`,
		"[other]",
		`B = { src = "b" }`,
	}

	assert.Equal(t, 1, findInlineTable(lines, "A"))
	assert.Equal(t, -1, findInlineTable(lines, "B"))
	assert.Equal(t, -1, findInlineTable(lines[2:], "B"), "no [tables] header")
}

func TestApplyAssignments_NoneIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	assert.NoError(t, ApplyAssignments(path, nil))
}

func TestFindSectionEnd_SkipsNextPreamble(t *testing.T) {
	lines := []string{
		"[tables.A]",
		"src = \"a.xlsx\"",
		"",
		"# about B",
		"[tables.B]",
	}

	assert.Equal(t, 2, findSectionEnd(lines, 0))
}

func TestTableKey(t *testing.T) {
	assert.Equal(t, "Budget", tableKey("Budget"))
	assert.Equal(t, "head-count_2", tableKey("head-count_2"))
	assert.Equal(t, `"Head Count"`, tableKey("Head Count"))
}

func TestCreateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, CreateConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())

	// The template loads cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Tables)

	err = CreateConfig(path)
	assert.ErrorIs(t, err, ErrConfigExists)
}
