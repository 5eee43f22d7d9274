package feed

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies mutation start and finish times for the journal.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names mutations and the objects uploaded for new posts.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random v4 UUIDs. They become journal record ids and
// the file part of post image paths (posts/{uid}/{uuid}{ext}).
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
