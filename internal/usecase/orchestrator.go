package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"research-chat/internal/domain"
	"research-chat/internal/integrations/agentapi"
	"research-chat/internal/timeline"
)

// AgentClient is the remote research agent service.
type AgentClient interface {
	Chat(ctx context.Context, in domain.ChatRequest) (domain.ChatReply, error)
	Ingest(ctx context.Context, filename string, r io.Reader) (domain.IngestResult, error)
}

// TimelineAppender is the write side of the timeline consumed by the
// orchestrator.
type TimelineAppender interface {
	Append(sender domain.Sender, text string) (domain.TimelineEvent, error)
	Snapshot() []domain.TimelineEvent
}

// Document is a file picked for ingestion. If Body also implements
// io.Closer it is closed once the upload settles or is rejected.
type Document struct {
	Name string
	Size int64
	Body io.Reader
}

// Orchestrator drives the chat and ingest channels of one session and folds
// their outcomes into the timeline and the ephemeral flags. Each channel
// allows a single outstanding call.
type Orchestrator struct {
	agent    AgentClient
	timeline TimelineAppender
	threadID string
	log      *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	flags domain.Flags

	changes timeline.Signal
	wg      sync.WaitGroup
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func NewOrchestrator(agent AgentClient, tl TimelineAppender, threadID string, opts ...Option) (*Orchestrator, error) {
	if agent == nil {
		return nil, errors.New("usecase: agent client must not be nil")
	}
	if tl == nil {
		return nil, errors.New("usecase: timeline must not be nil")
	}
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, errors.New("usecase: thread id must not be empty")
	}
	o := &Orchestrator{
		agent:    agent,
		timeline: tl,
		threadID: threadID,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("thread_id", threadID)
	return o, nil
}

// ThreadID returns the session identifier sent with every chat turn.
func (o *Orchestrator) ThreadID() string {
	return o.threadID
}

// Flags returns the current ephemeral view state.
func (o *Orchestrator) Flags() domain.Flags {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flags
}

// Snapshot returns the committed timeline.
func (o *Orchestrator) Snapshot() []domain.TimelineEvent {
	return o.timeline.Snapshot()
}

// Subscribe notifies after every timeline append and every flag change.
func (o *Orchestrator) Subscribe() (<-chan struct{}, func()) {
	return o.changes.Subscribe()
}

// Wait blocks until every dispatched call has settled.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// WaitContext is Wait bounded by ctx. Returning early does not cancel the
// calls still in flight.
func (o *Orchestrator) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitChatTurn commits the user's turn and dispatches it to the agent.
// Whitespace-only input is ignored and reported as not accepted. A remote
// failure never reaches the caller; it is committed as an agent event.
func (o *Orchestrator) SubmitChatTurn(ctx context.Context, rawInput string) (bool, error) {
	text := strings.TrimSpace(rawInput)
	if text == "" {
		return false, nil
	}

	o.mu.Lock()
	if o.flags.ChatPending {
		o.mu.Unlock()
		return false, ErrChatPending
	}
	ev, err := o.timeline.Append(domain.SenderUser, text)
	if err != nil {
		o.mu.Unlock()
		return false, fmt.Errorf("usecase: commit user turn: %w", err)
	}
	o.flags.ChatPending = true
	o.mu.Unlock()
	o.changes.Notify()

	log := o.log.With("event_id", ev.ID)
	log.Info("chat turn dispatched", "chars", len(text))

	o.wg.Add(1)
	go o.runChat(context.WithoutCancel(ctx), log, text)
	return true, nil
}

func (o *Orchestrator) runChat(ctx context.Context, log *slog.Logger, text string) {
	defer o.wg.Done()
	start := o.now()

	reply, err := o.callChat(ctx, text)
	answer := reply.Response
	if err != nil {
		uerr := classify("chat", err)
		log.Warn("chat turn failed",
			"failure_kind", uerr.Code,
			"reason", uerr.Reason,
			"detail", uerr.Detail,
			"error", err,
			"elapsed", o.now().Sub(start),
		)
		answer = ChatErrorText
	}

	o.mu.Lock()
	ev, appendErr := o.timeline.Append(domain.SenderAgent, answer)
	o.flags.ChatPending = false
	o.mu.Unlock()
	o.changes.Notify()

	if appendErr != nil {
		log.Error("failed to commit agent turn", "error", appendErr)
		return
	}
	if err == nil {
		log.Info("chat turn settled", "reply_event_id", ev.ID, "elapsed", o.now().Sub(start))
	}
}

func (o *Orchestrator) callChat(ctx context.Context, text string) (reply domain.ChatReply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent client panic: %v", r)
		}
	}()
	reply, err = o.agent.Chat(ctx, domain.ChatRequest{Message: text, ThreadID: o.threadID})
	if err == nil && strings.TrimSpace(reply.Response) == "" {
		err = &agentapi.MalformedResponseError{Op: "chat", Err: errors.New("empty response text")}
	}
	return reply, err
}

// SubmitDocument uploads a document for the agent to index. Its outcome is
// reported only through the status message; the timeline is untouched.
func (o *Orchestrator) SubmitDocument(ctx context.Context, doc Document) (bool, error) {
	name := strings.TrimSpace(doc.Name)
	if name == "" || doc.Body == nil {
		closeBody(doc.Body)
		return false, nil
	}

	o.mu.Lock()
	if o.flags.UploadPending {
		o.mu.Unlock()
		closeBody(doc.Body)
		return false, ErrUploadPending
	}
	o.flags.UploadPending = true
	o.flags.StatusMessage = StatusProcessing
	o.mu.Unlock()
	o.changes.Notify()

	log := o.log.With("filename", name)
	if doc.Size > 0 {
		log = log.With("size", humanize.Bytes(uint64(doc.Size)))
	}
	log.Info("document upload dispatched")

	o.wg.Add(1)
	go o.runIngest(context.WithoutCancel(ctx), log, name, doc.Body)
	return true, nil
}

func (o *Orchestrator) runIngest(ctx context.Context, log *slog.Logger, name string, body io.Reader) {
	defer o.wg.Done()
	defer closeBody(body)
	start := o.now()

	res, err := o.callIngest(ctx, name, body)
	status := StatusFailed
	if err != nil {
		uerr := classify("upload", err)
		log.Warn("document upload failed",
			"failure_kind", uerr.Code,
			"reason", uerr.Reason,
			"detail", uerr.Detail,
			"error", err,
			"elapsed", o.now().Sub(start),
		)
	} else {
		status = ingestSuccessStatus(res.ChunksCreated)
		log.Info("document upload settled", "chunks", res.ChunksCreated, "elapsed", o.now().Sub(start))
	}

	o.mu.Lock()
	o.flags.StatusMessage = status
	o.flags.UploadPending = false
	o.mu.Unlock()
	o.changes.Notify()
}

func closeBody(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

func (o *Orchestrator) callIngest(ctx context.Context, name string, body io.Reader) (res domain.IngestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent client panic: %v", r)
		}
	}()
	return o.agent.Ingest(ctx, name, body)
}
