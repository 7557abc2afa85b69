package commands_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/commands"
)

func runLedger(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := commands.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// initProject creates a USD project for tenant acme whose checking account
// clears bank account chase.
func initProject(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	args := append([]string{"init", dir, "--tenant", "acme", "--actor", "tester", "--currency", "USD", "--bank-account", "chase"}, extra...)
	_, err := runLedger(t, args...)
	require.NoError(t, err)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := initProject(t)

	expectedDirs := []string{
		"accounts",
		"rules",
		"entries",
		"exports",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	for _, f := range []string{commands.ConfigFile, "ledger.db", accounts.ChartFile, ".gitignore"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "%s should exist", f)
	}
}

func TestInit_Config(t *testing.T) {
	dir := initProject(t)

	data, err := os.ReadFile(filepath.Join(dir, commands.ConfigFile))
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "acme:")
	assert.Contains(t, contents, "base_currency: USD")
	assert.Contains(t, contents, "auto_confirm_threshold: 90")
}

func TestInit_Accounts(t *testing.T) {
	dir := initProject(t)

	rows, err := accounts.LoadChart(dir)
	require.NoError(t, err)
	assert.Len(t, rows, 15, "default LLC single member chart has 15 accounts")

	out, err := runLedger(t, "account", "list", "--dir", dir, "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Business Checking")
	assert.Contains(t, out, "chase")

	// Syncing the unchanged chart creates nothing.
	out, err = runLedger(t, "account", "sync", "--dir", dir, "--tenant", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 accounts")
}

func TestInit_Gitignore(t *testing.T) {
	dir := initProject(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{"ledger.db*", ".env"} {
		assert.Contains(t, string(data), pattern, ".gitignore should contain %s", pattern)
	}
}

func TestInit_RefusesExistingProject(t *testing.T) {
	dir := initProject(t)
	_, err := runLedger(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := initProject(t, "--git")

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init:")

	authorLog := exec.Command("git", "log", "--format=%an <%ae>", "-1")
	authorLog.Dir = dir
	out, err = authorLog.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Ledger <ledger@localhost>")

	// The database is ignored.
	ls := exec.Command("git", "ls-files")
	ls.Dir = dir
	out, err = ls.Output()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "ledger.db")
	assert.Contains(t, string(out), accounts.ChartFile)
}
