package storage_test

import (
	"testing"
	"time"

	"github.com/andriantochan/signbench/internal/storage"
	"github.com/andriantochan/signbench/internal/testutil"
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

func newStore(t *testing.T, connStr, key string) *storage.PostgresStore {
	store, err := storage.NewPostgresStore(connStr, key, logger{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func sampleCheckpoint(runID string) *models.Checkpoint {
	return &models.Checkpoint{
		RunID: runID,
		State: models.WorkflowState{
			AccessToken:     "tok",
			RequestID:       "abc123",
			UserIdentifier:  "tester",
			SignerSessionID: "sess-1",
			UploadedFiles:   []string{"a.pdf", "b.pdf"},
		},
		CompletedSteps: []string{"Token Access", "Upload Files"},
	}
}

func TestCheckpointSaveAndLoad(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	store := newStore(t, td.ConnStr, "bench-a")

	require.NoError(t, store.Save(sampleCheckpoint("run-1")))

	cp, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "run-1", cp.RunID)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, cp.State.UploadedFiles)
	assert.Equal(t, "sess-1", cp.State.SignerSessionID)
	assert.Equal(t, []string{"Token Access", "Upload Files"}, cp.CompletedSteps)
	assert.WithinDuration(t, time.Now(), cp.SavedAt, time.Minute)
}

func TestCheckpointSaveOverwrites(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	store := newStore(t, td.ConnStr, "bench-a")

	require.NoError(t, store.Save(sampleCheckpoint("run-1")))

	updated := sampleCheckpoint("run-2")
	updated.State.UploadedFiles = append(updated.State.UploadedFiles, "c.pdf")
	updated.CompletedSteps = append(updated.CompletedSteps, "RequestSign Submit")
	require.NoError(t, store.Save(updated))

	cp, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "run-2", cp.RunID)
	assert.Len(t, cp.State.UploadedFiles, 3)
	assert.Equal(t, "RequestSign Submit", cp.LastStep())
}

func TestCheckpointKeysAreIsolated(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	storeA := newStore(t, td.ConnStr, "bench-a")
	storeB := newStore(t, td.ConnStr, "bench-b")

	require.NoError(t, storeA.Save(sampleCheckpoint("run-a")))

	cp, err := storeB.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)

	cp, err = storeA.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "run-a", cp.RunID)
}

func TestCheckpointClear(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	store := newStore(t, td.ConnStr, "bench-a")

	require.NoError(t, store.Save(sampleCheckpoint("run-1")))
	require.NoError(t, store.Clear())

	cp, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)

	// Clearing an already-empty key is fine.
	require.NoError(t, store.Clear())
}

func TestSaveNilCheckpointFails(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	store := newStore(t, td.ConnStr, "bench-a")
	assert.Error(t, store.Save(nil))
}

func TestSaveAndListTimings(t *testing.T) {
	td := testutil.SetupTestDB(t)
	defer td.Teardown(t)

	store := newStore(t, td.ConnStr, "bench-a")

	start := time.Now().Add(-3 * time.Second).UTC().Truncate(time.Millisecond)
	records := []models.TimingRecord{
		{
			Operation: "Upload File 1",
			StartTime: start,
			EndTime:   start.Add(1200 * time.Millisecond),
			Duration:  1200 * time.Millisecond,
			Status:    models.SuccessTimingStatus,
		},
		{
			Operation: "CheckStatus Poll",
			StartTime: start.Add(2 * time.Second),
			EndTime:   start.Add(2500 * time.Millisecond),
			Duration:  500 * time.Millisecond,
			Status:    models.FailedTimingStatus,
		},
	}
	require.NoError(t, store.SaveTimings("run-1", records))

	got, err := store.ListTimings("run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Upload File 1", got[0].Operation)
	assert.Equal(t, 1200*time.Millisecond, got[0].Duration)
	assert.Equal(t, models.SuccessTimingStatus, got[0].Status)
	assert.Equal(t, "CheckStatus Poll", got[1].Operation)
	assert.Equal(t, models.FailedTimingStatus, got[1].Status)

	other, err := store.ListTimings("run-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
