package domain

import "time"

// Sender identifies who produced a timeline event.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// TimelineEvent is a single committed, immutable entry of the visible
// conversation.
type TimelineEvent struct {
	ID        string
	Sender    Sender
	Text      string
	CreatedAt time.Time
}

// Flags is the transient view state kept next to the timeline.
type Flags struct {
	ChatPending   bool
	UploadPending bool
	StatusMessage string
}
