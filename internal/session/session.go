// Package session holds the process-lifetime identity that scopes the agent
// service's memory of a conversation.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

const shortLen = 8

// Session is created once per client process and never changes.
type Session struct {
	threadID string
}

// New generates a fresh random thread id. An error means the randomness
// source is unavailable and the client cannot start.
func New() (Session, error) {
	id, err := newRandom()
	if err != nil {
		return Session{}, fmt.Errorf("session: generate thread id: %w", err)
	}
	return Session{threadID: id.String()}, nil
}

// ThreadID returns the opaque identifier sent with every chat turn.
func (s Session) ThreadID() string {
	return s.threadID
}

// Short returns the display prefix of the thread id.
func (s Session) Short() string {
	if len(s.threadID) <= shortLen {
		return s.threadID
	}
	return s.threadID[:shortLen]
}

var newRandom = uuid.NewRandom
