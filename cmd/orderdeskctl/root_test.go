package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "orderdesk "), "unexpected output %q", out)
}

func TestCommandsRequireDSN(t *testing.T) {
	t.Setenv(envPostgresDSN, "")

	for _, args := range [][]string{
		{"migrate", "up"},
		{"migrate", "down", "--steps", "2"},
		{"migrate", "status"},
		{"seed"},
	} {
		_, err := execute(t, args...)
		require.ErrorIs(t, err, errDSNRequired, "args %v", args)
	}
}

func TestMigrateRejectsExtraArgs(t *testing.T) {
	_, err := execute(t, "migrate", "up", "now")
	require.Error(t, err)
}

func TestMigrateAgainstPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv(envPostgresDSN))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	out, err := execute(t, "migrate", "up", "--dsn", dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	assert.Contains(t, out, "migrate up ok")

	out, err = execute(t, "migrate", "status", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "pending=0")

	out, err = execute(t, "seed", "--dsn", dsn)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
