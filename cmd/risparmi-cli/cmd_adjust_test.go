package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risparmi/internal/core"
)

const expensesCSV = "Rent,Food\n1000,400\n200,100\n"

// runCLI executes the root command with args and returns what it wrote to
// stdout. Package-level flag variables are reset first since every run
// shares the same command tree.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RISPARMI_CONFIG", "")
	t.Setenv("ADJUST_STRATEGY", "model")
	adjustStrategy, adjustOut = "", ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeExpenses(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expenses.csv")
	require.NoError(t, os.WriteFile(path, []byte(expensesCSV), 0o600))
	return path
}

func TestAdjustLocalToStdout(t *testing.T) {
	in := writeExpenses(t)

	out, err := runCLI(t, "adjust", "--file", in, "--goal", "20", "--exclude", "Food", "--strategy", "local")
	require.NoError(t, err)
	assert.Equal(t, "Category,Amount\nRent,860\nFood,500\n", out)
}

func TestAdjustLocalToFile(t *testing.T) {
	in := writeExpenses(t)
	dest := filepath.Join(t.TempDir(), "plan.csv")

	out, err := runCLI(t, "adjust", "-f", in, "-g", "20", "-x", "Food", "--strategy", "local", "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "Category,Amount\nRent,860\nFood,500\n", string(written))
}

func TestAdjustRejectsBadInput(t *testing.T) {
	in := writeExpenses(t)

	_, err := runCLI(t, "adjust", "-f", in, "-g", "20", "-x", "Food", "--strategy", "guess")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")

	_, err = runCLI(t, "adjust", "-f", in, "-g", "150", "-x", "Food", "--strategy", "local")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = runCLI(t, "adjust", "-f", filepath.Join(t.TempDir(), "missing.csv"), "-g", "20", "-x", "Food", "--strategy", "local")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPromptPrintsRenderedTemplate(t *testing.T) {
	in := writeExpenses(t)

	out, err := runCLI(t, "prompt", "-f", in, "-g", "20", "-x", "Food")
	require.NoError(t, err)
	assert.Contains(t, out, `{"Rent": 1200, "Food": 500}`)
	assert.Contains(t, out, "20%")
	assert.Contains(t, out, `"Food" must not be adjusted`)
}
