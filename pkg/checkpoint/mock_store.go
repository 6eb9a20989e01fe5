package checkpoint

import "github.com/andriantochan/signbench/pkg/models"

// mockStore implements Store with in-memory storage
type mockStore struct {
	cp    *models.Checkpoint
	saves int
}

func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Save(cp *models.Checkpoint) error {
	clone := *cp
	clone.State = cp.State.Clone()
	clone.CompletedSteps = append([]string(nil), cp.CompletedSteps...)
	m.cp = &clone
	m.saves++
	return nil
}

func (m *mockStore) Load() (*models.Checkpoint, error) {
	if m.cp == nil {
		return nil, nil
	}
	clone := *m.cp
	clone.State = m.cp.State.Clone()
	clone.CompletedSteps = append([]string(nil), m.cp.CompletedSteps...)
	return &clone, nil
}

func (m *mockStore) Clear() error {
	m.cp = nil
	return nil
}

func (m *mockStore) Close() error {
	return nil
}
