package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/andriantochan/signbench/pkg/models"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for the file store.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// FileStore keeps the checkpoint as a single JSON file. Writes go to a temp
// file in the same directory followed by a rename, so an interrupt mid-write
// never corrupts the last-known-good snapshot.
type FileStore struct {
	path   string
	logger Logger
}

func NewFileStore(path string, logger Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Save(cp *models.Checkpoint) error {
	if cp == nil {
		return errors.New("nil checkpoint")
	}
	cp.SavedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp checkpoint")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp checkpoint")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace checkpoint")
	}
	return nil
}

func (s *FileStore) Load() (*models.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warnf("Checkpoint %s unreadable, starting fresh: %v", s.path, err)
		return nil, nil
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.Warnf("Checkpoint %s corrupt, starting fresh: %v", s.path, err)
		return nil, nil
	}
	s.logger.Infof("Loaded checkpoint from %s (last step: %s, saved at %s)",
		s.path, cp.LastStep(), cp.SavedAt.Format(time.RFC3339))
	return &cp, nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove checkpoint %s", s.path)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
