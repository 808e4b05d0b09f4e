// Package timeline implements the append-only log of visible conversation
// events.
package timeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"research-chat/internal/domain"
)

// Store is an append-only, chronologically ordered sequence of
// TimelineEvents. Events are never rewritten or removed.
type Store struct {
	mu     sync.RWMutex
	events []domain.TimelineEvent
	ids    *idSource
	now    func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		ids: newIDSource(),
		now: time.Now,
	}
}

// Append commits a new event at the end of the timeline.
func (s *Store) Append(sender domain.Sender, text string) (domain.TimelineEvent, error) {
	if sender != domain.SenderUser && sender != domain.SenderAgent {
		return domain.TimelineEvent{}, fmt.Errorf("timeline: unknown sender %q", sender)
	}
	if strings.TrimSpace(text) == "" {
		return domain.TimelineEvent{}, errors.New("timeline: event text must not be empty")
	}

	s.mu.Lock()
	now := s.now()
	id, err := s.ids.next(now)
	if err != nil {
		s.mu.Unlock()
		return domain.TimelineEvent{}, fmt.Errorf("timeline: generate event id: %w", err)
	}
	ev := domain.TimelineEvent{
		ID:        id,
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return ev, nil
}

// Snapshot returns a copy of the full history in append order.
func (s *Store) Snapshot() []domain.TimelineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TimelineEvent, len(s.events))
	copy(out, s.events)
	return out
}
