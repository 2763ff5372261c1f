package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/sheetsync/internal/config"
	"github.com/tonimelisma/sheetsync/internal/workbook"
	"github.com/tonimelisma/sheetsync/testutil"
)

// cliEnv is a temp directory with a config file pointing at a fake service.
type cliEnv struct {
	fake   *testutil.FakeService
	dir    string
	config string
}

func newCLIEnv(t *testing.T, tables string) *cliEnv {
	t.Helper()

	fake := testutil.NewFakeService()
	t.Cleanup(fake.Close)

	// [env] is exported into the process; restore it afterwards.
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvConfig, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := fmt.Sprintf(`target_folder = "9001"
api_url = %q
journal_path = "state/journal.db"
log_format = "text"

[env]
SMARTSHEET_ACCESS_TOKEN = "test-token"
%s`, fake.URL(), tables)

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return &cliEnv{fake: fake, dir: dir, config: path}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--quiet"}, args...))

	err := execute(ctx, cmd)

	return out.String(), err
}

func TestCLI_SetCreatesSheetAndSavesID(t *testing.T) {
	env := newCLIEnv(t, `
# finance
[tables.Budget]
id = ""
src = "budget.xlsx"
`)
	require.NoError(t, testutil.WriteWorkbook(filepath.Join(env.dir, "in", "budget.xlsx"),
		"Sheet1", []string{"Name", "Amount"}, 4))

	out, err := env.run(t, "set")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	created := env.fake.SheetByName("Budget")
	require.NotNil(t, created)
	assert.Len(t, created.Rows, 4)

	data, err := os.ReadFile(env.config)
	require.NoError(t, err)
	assert.Contains(t, string(data), `id = "`+strconv.FormatInt(created.ID, 10)+`"`)
	assert.Contains(t, string(data), "# finance")

	// Second run replaces through a staging sheet.
	out, err = env.run(t, "attach")
	require.NoError(t, err)
	assert.Contains(t, out, "replaced")
	assert.Nil(t, env.fake.SheetByName("TMP_Budget"))
	assert.Len(t, env.fake.Sheet(created.ID).Rows, 4)
}

func TestCLI_GetExportsAuditWorkbook(t *testing.T) {
	env := newCLIEnv(t, "")
	sheet := env.fake.AddSheet("Budget", 2)

	f, err := os.OpenFile(env.config, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "\n[tables.Budget]\nid = %q\nsrc = \"budget.xlsx\"\n", strconv.FormatInt(sheet.ID, 10))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = env.run(t, "get")
	require.NoError(t, err)

	info, err := workbook.Inspect(filepath.Join(env.dir, "out", "budget.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AUDIT"}, info.Sheets)
	assert.Equal(t, 2, info.DataRows)
}

func TestCLI_TestAttachesSource(t *testing.T) {
	env := newCLIEnv(t, "")
	sheet := env.fake.AddSheet("Budget", 1)

	f, err := os.OpenFile(env.config, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "\n[tables.Budget]\nid = %q\nsrc = \"budget.xlsx\"\n", strconv.FormatInt(sheet.ID, 10))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, testutil.WriteWorkbook(filepath.Join(env.dir, "in", "budget.xlsx"),
		"Sheet1", []string{"Name"}, 1))

	out, err := env.run(t, "test", "--json")
	require.NoError(t, err)

	var report reportJSON
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "test", report.Command)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, "attached", report.Tables[0].Status)
	assert.Equal(t, []string{"budget.xlsx"}, env.fake.Sheet(sheet.ID).Attachments)
}

func TestCLI_RunLockedOut(t *testing.T) {
	env := newCLIEnv(t, "")

	release, err := acquireRunLock(lockPath(filepath.Join(env.dir, "state", "journal.db")))
	require.NoError(t, err)
	defer release()

	_, err = env.run(t, "set")
	assert.ErrorContains(t, err, "in progress")
}

func TestCLI_MissingToken(t *testing.T) {
	env := newCLIEnv(t, "")

	data, err := os.ReadFile(env.config)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte(`SMARTSHEET_ACCESS_TOKEN = "test-token"`), nil, 1)
	require.NoError(t, os.WriteFile(env.config, data, 0o600))

	_, err = env.run(t, "set")
	assert.ErrorContains(t, err, "no access token")
}

func TestCLI_CleanupAndStatus(t *testing.T) {
	env := newCLIEnv(t, "")

	out, err := env.run(t, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "No staging sheets")

	out, err = env.run(t, "status", "--json")
	require.NoError(t, err)

	var st statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, env.config, st.ConfigPath)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "cleanup", st.LastRun.Command)
	assert.Empty(t, st.Staging)
}

func TestCLI_StatusText(t *testing.T) {
	env := newCLIEnv(t, `
[tables.Budget]
id = "42"
src = "budget.xlsx"
`)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Budget  42     budget.xlsx")
	assert.Contains(t, out, "Last run: never")
}

func TestCLI_ConfigShowRedactsToken(t *testing.T) {
	env := newCLIEnv(t, "")

	out, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "test-token")

	out, err = env.run(t, "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "test-token")

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "9001", snap["target_folder"])
}

func TestCLI_ConfigInit(t *testing.T) {
	t.Setenv(config.EnvConfig, "")

	path := filepath.Join(t.TempDir(), "sheetsync", "config.toml")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, path)

	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	assert.ErrorIs(t, cmd.Execute(), config.ErrConfigExists)
}

func TestCLI_UnknownConfigKeyFails(t *testing.T) {
	env := newCLIEnv(t, `
[tables.Budget]
source = "budget.xlsx"
`)

	_, err := env.run(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "src"`)
}
