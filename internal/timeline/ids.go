package timeline

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// idSource hands out ULIDs that sort in creation order, including ids made
// within the same millisecond or after the wall clock steps backwards.
// Not safe for concurrent use; Store serializes access.
type idSource struct {
	entropy io.Reader
	lastMs  uint64
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next(now time.Time) (string, error) {
	ms := ulid.Timestamp(now)
	if ms < s.lastMs {
		ms = s.lastMs
	}
	id, err := ulid.New(ms, s.entropy)
	if err != nil {
		return "", err
	}
	s.lastMs = ms
	return id.String(), nil
}
