package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/histlens/internal/storage"
)

func setupDeleteTest(t *testing.T) (*DeleteCommand, *storage.SQLiteStore) {
	t.Helper()
	store := openTestStore(t)
	seedBundle(t, store, "keep", time.Now())
	seedBundle(t, store, "drop", time.Now())
	return &DeleteCommand{ID: "drop", globals: testGlobals(t), store: store}, store
}

func TestDelete_Force(t *testing.T) {
	cmd, store := setupDeleteTest(t)
	cmd.Force = true

	output := captureOutput(t, func() { require.NoError(t, cmd.Execute(nil)) })

	assert.Contains(t, output, "Deleted artifact drop")
	assert.Equal(t, int64(1), artifactCount(t, store))

	hits, err := store.SearchVisits(context.Background(), storage.SearchQuery{ArtifactID: "drop"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	entries, err := store.RecentAudit(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delete", entries[0].Action)
	assert.Equal(t, "drop", entries[0].ArtifactID)
}

func TestDelete_Confirmation(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"y\n", 1},
		{"yes\n", 1},
		{"n\n", 2},
		{"\n", 2},
	}
	for _, tt := range tests {
		cmd, store := setupDeleteTest(t)
		cmd.stdin = strings.NewReader(tt.input)

		output := captureOutput(t, func() { require.NoError(t, cmd.Execute(nil)) })

		assert.Contains(t, output, "[y/N]")
		assert.Equal(t, tt.want, artifactCount(t, store), "input %q", tt.input)
	}
}

func TestDelete_PositionalID(t *testing.T) {
	cmd, store := setupDeleteTest(t)
	cmd.ID = ""
	cmd.Force = true

	captureOutput(t, func() { require.NoError(t, cmd.Execute([]string{"keep"})) })

	assert.Equal(t, int64(1), artifactCount(t, store))
	_, err := store.LoadBundle(context.Background(), "keep")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete_JSON(t *testing.T) {
	cmd, _ := setupDeleteTest(t)
	cmd.globals.JSON = true

	output := captureOutput(t, func() { require.NoError(t, cmd.Execute(nil)) })

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &got))
	assert.Equal(t, "drop", got["deleted"])
}

func TestDelete_Errors(t *testing.T) {
	cmd, _ := setupDeleteTest(t)
	cmd.ID = ""
	assert.ErrorContains(t, cmd.Execute(nil), "--id is required")

	cmd, _ = setupDeleteTest(t)
	cmd.ID = "missing"
	cmd.Force = true
	assert.ErrorContains(t, cmd.Execute(nil), "artifact not found: missing")
}
