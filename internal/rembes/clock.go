package rembes

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so periods and keys are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in a fixed location.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
