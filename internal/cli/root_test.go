package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/clmcore/internal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "clmctl", cmd.Use)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"diff", "config", "apikey"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitDifferent, GetExitCode(&ExitError{Code: ExitDifferent, Message: "files differ"}))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("boom")))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SilenceErrors = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiff_Text(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.txt", "a\nb\nc")
	newPath := writeFile(t, dir, "new.txt", "a\nc\nd")

	out, err := execute(t, "diff", oldPath, newPath)
	require.NoError(t, err)
	assert.Contains(t, out, "+    3  d")
	assert.Contains(t, out, "-       b")
	assert.Contains(t, out, "1 added, 1 removed, 2 unchanged")
}

func TestDiff_JSON(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.txt", "a\nb")
	newPath := writeFile(t, dir, "new.txt", "a\nb\nc")

	out, err := execute(t, "diff", "--format", "json", oldPath, newPath)
	require.NoError(t, err)

	var got DiffOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Stats.Added)
	assert.Equal(t, 2, got.Stats.Common)
	require.Len(t, got.Edits, 3)
	assert.Equal(t, 3, got.Edits[2].LineNumber)
}

func TestDiff_ExitCode(t *testing.T) {
	dir := t.TempDir()
	same := writeFile(t, dir, "same.txt", "x\ny")
	other := writeFile(t, dir, "other.txt", "x\nz")

	_, err := execute(t, "diff", "--exit-code", same, same)
	require.NoError(t, err)

	_, err = execute(t, "diff", "--exit-code", same, other)
	require.Error(t, err)
	assert.Equal(t, ExitDifferent, GetExitCode(err))
}

func TestDiff_MissingFile(t *testing.T) {
	_, err := execute(t, "diff", filepath.Join(t.TempDir(), "nope"), "also-nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfig_YAML(t *testing.T) {
	t.Setenv("CLM_CONFIG_PATH", "")
	t.Setenv("CLM_LOG_FORMAT", "json")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "termination_policy: at_end_date")
	assert.Contains(t, out, "format: json")
}

func TestConfig_Invalid(t *testing.T) {
	t.Setenv("CLM_CONFIG_PATH", "")
	t.Setenv("CLM_TRANSPORT_MODE", "carrier-pigeon")

	_, err := execute(t, "config")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAPIKeyCreate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "clm.db")

	out, err := execute(t, "apikey", "create", "--db", dbPath, "--tenant", "acme", "--format", "json")
	require.NoError(t, err)

	var created APIKeyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "acme", created.TenantID)
	require.NotEmpty(t, created.Token)

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tenantID, err := sqlite.NewAPIKeyStore(db).ResolveTenant(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenantID)
}

func TestAPIKeyCreate_RequiresTenant(t *testing.T) {
	_, err := execute(t, "apikey", "create", "--db", filepath.Join(t.TempDir(), "clm.db"))
	require.Error(t, err)
}
