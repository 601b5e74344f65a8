package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/auth"
	"finbits/internal/core"
	"finbits/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommandIssuesVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	out, err := execute(t, "token", "alice")
	require.NoError(t, err)

	user, err := auth.NewIssuer(testSecret, 0).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := execute(t, "token", "alice")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestMigrateCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "finbits.db")

	out, err := execute(t, "migrate", "version", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "version=0 dirty=false\n", out)

	out, err = execute(t, "migrate", "up", "--db", db)
	require.NoError(t, err)
	assert.NotEqual(t, "version=0 dirty=false\n", out)

	_, err = execute(t, "migrate", "sideways", "--db", db)
	assert.Error(t, err)
}

func TestGenerateCommandStoresBit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "finbits.db")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", db)
	t.Setenv("OPENAI_API_KEY", "")

	out, err := execute(t, "generate", "--title", "Emergency funds", "--topic", "saving", "--category", "saving")
	require.NoError(t, err)

	var bit core.Bit
	require.NoError(t, json.Unmarshal([]byte(out), &bit))
	assert.NotEmpty(t, bit.ID)
	assert.Equal(t, core.CategorySaving, bit.Category)

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	defer repo.Close()
	stored, err := repo.GetBit(context.Background(), bit.ID)
	require.NoError(t, err)
	assert.Equal(t, "Emergency funds", stored.Title)
}

func TestGenerateCommandRejectsMemoryBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATA_BACKEND", "memory")

	_, err := execute(t, "generate", "--title", "Budgets")
	assert.ErrorContains(t, err, "persistent backend")
}
