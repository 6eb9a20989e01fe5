package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andriantochan/signbench/pkg/checkpoint"
	"github.com/andriantochan/signbench/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Warnf(format string, args ...interface{}) {
	// no-op
}

func sampleCheckpoint() *models.Checkpoint {
	return &models.Checkpoint{
		RunID: "run-1",
		State: models.WorkflowState{
			AccessToken:     "tok",
			UploadedFiles:   []string{"a.pdf", "b.pdf", "c.pdf"},
			RequestID:       "abc123",
			UserIdentifier:  "tester",
			SignerSessionID: "session-9",
		},
		CompletedSteps: []string{"Token Access", "Upload Files"},
	}
}

func TestFileStore(t *testing.T) {
	newStore := func(t *testing.T) (*checkpoint.FileStore, string) {
		path := filepath.Join(t.TempDir(), "checkpoint.json")
		return checkpoint.NewFileStore(path, logger{}), path
	}

	t.Run("RoundTrip", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Save(sampleCheckpoint()))

		cp, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, "run-1", cp.RunID)
		assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, cp.State.UploadedFiles)
		assert.Equal(t, "abc123", cp.State.RequestID)
		assert.Equal(t, "session-9", cp.State.SignerSessionID)
		assert.Equal(t, []string{"Token Access", "Upload Files"}, cp.CompletedSteps)
		assert.False(t, cp.SavedAt.IsZero())
	})

	t.Run("MissingReadsAsAbsent", func(t *testing.T) {
		store, _ := newStore(t)
		cp, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("CorruptReadsAsAbsent", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		cp, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.Save(sampleCheckpoint()))

		second := sampleCheckpoint()
		second.State.UploadedFiles = append(second.State.UploadedFiles, "d.pdf")
		second.CompletedSteps = append(second.CompletedSteps, "RequestSign Submit")
		require.NoError(t, store.Save(second))

		cp, err := store.Load()
		require.NoError(t, err)
		assert.Len(t, cp.State.UploadedFiles, 4)
		assert.Equal(t, "RequestSign Submit", cp.LastStep())
	})

	t.Run("ClearRemoves", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, store.Save(sampleCheckpoint()))
		require.NoError(t, store.Clear())

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		cp, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("ClearWithoutSaveIsFine", func(t *testing.T) {
		store, _ := newStore(t)
		assert.NoError(t, store.Clear())
	})

	t.Run("NoTempFileLeftBehind", func(t *testing.T) {
		store, path := newStore(t)
		require.NoError(t, store.Save(sampleCheckpoint()))

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, filepath.Base(path), entries[0].Name())
	})
}

func TestCheckpointHelpers(t *testing.T) {
	cp := sampleCheckpoint()
	assert.True(t, cp.StepCompleted("Upload Files"))
	assert.False(t, cp.StepCompleted("OTP Auth"))
	assert.Equal(t, "Upload Files", cp.LastStep())

	var nilCP *models.Checkpoint
	assert.False(t, nilCP.StepCompleted("Upload Files"))
	assert.Equal(t, "", nilCP.LastStep())
}
