package drop

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so naming, bucketing and retention are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in the local zone.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ZonedClock returns the current time in a fixed location. Date labels are
// computed in the location of the clock's Now().
type ZonedClock struct {
	Location *time.Location
}

func (c ZonedClock) Now() time.Time {
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
