package testutil

import (
	"rembes-go/internal/rembes"
	"rembes-go/internal/staging"
)

const (
	// DefaultStagingMaxSize is the default max size for test staging areas (10MB).
	DefaultStagingMaxSize = 10 * 1024 * 1024
)

// NewTestStagingArea creates a new in-memory staging area for testing.
func NewTestStagingArea() rembes.StagingArea {
	return staging.NewMemoryStagingArea(NewStubIDGenerator(), DefaultStagingMaxSize)
}

// NewTestStagingAreaWithSize creates a new in-memory staging area with a custom max size.
func NewTestStagingAreaWithSize(maxSize int64) rembes.StagingArea {
	return staging.NewMemoryStagingArea(NewStubIDGenerator(), maxSize)
}
