package checkpoint

import "github.com/andriantochan/signbench/pkg/models"

// Store persists run progress so an interrupted run can resume without
// repeating finished work.
type Store interface {
	// Save overwrites the stored snapshot. Called after every completed
	// step and on interrupt.
	Save(cp *models.Checkpoint) error

	// Load returns the last saved snapshot, or (nil, nil) when no usable
	// snapshot exists. A corrupt snapshot is not fatal; it reads as
	// absent and the run starts fresh.
	Load() (*models.Checkpoint, error)

	// Clear removes the stored snapshot after a fully successful run or
	// on explicit request.
	Clear() error

	Close() error
}
