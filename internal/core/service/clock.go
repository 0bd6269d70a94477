package service

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the server time stamped on loans.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now is truncated to milliseconds, the coarsest precision among the stores,
// so a stored timestamp reads back unchanged.
func (systemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// IDGenerator assigns identifiers to new records.
type IDGenerator interface {
	NewID() (string, error)
}

// uuidGenerator issues time-ordered UUIDv7 identifiers.
type uuidGenerator struct{}

func (uuidGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
