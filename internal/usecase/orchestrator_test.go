package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"research-chat/internal/domain"
	"research-chat/internal/integrations/agentapi"
	"research-chat/internal/timeline"
)

type fakeAgent struct {
	mu sync.Mutex

	chatReply domain.ChatReply
	chatErr   error
	chatGate  chan struct{}
	chatCalls []domain.ChatRequest

	ingestRes   domain.IngestResult
	ingestErr   error
	ingestGate  chan struct{}
	ingestCalls []string
	ingestBody  []string
}

func (f *fakeAgent) Chat(_ context.Context, in domain.ChatRequest) (domain.ChatReply, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, in)
	gate := f.chatGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.chatReply, f.chatErr
}

func (f *fakeAgent) Ingest(_ context.Context, filename string, r io.Reader) (domain.IngestResult, error) {
	data, _ := io.ReadAll(r)
	f.mu.Lock()
	f.ingestCalls = append(f.ingestCalls, filename)
	f.ingestBody = append(f.ingestBody, string(data))
	gate := f.ingestGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.ingestRes, f.ingestErr
}

func (f *fakeAgent) chatRequests() []domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatRequest(nil), f.chatCalls...)
}

type panicAgent struct{}

func (panicAgent) Chat(context.Context, domain.ChatRequest) (domain.ChatReply, error) {
	panic("boom")
}

func (panicAgent) Ingest(context.Context, string, io.Reader) (domain.IngestResult, error) {
	panic("boom")
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newTestOrchestrator(t *testing.T, agent AgentClient) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(agent, timeline.NewStore(), "thread-1")
	require.NoError(t, err)
	return o
}

func texts(events []domain.TimelineEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, string(ev.Sender)+":"+ev.Text)
	}
	return out
}

func pdf(name, body string) Document {
	return Document{Name: name, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestNewOrchestrator_ValidatesDependencies(t *testing.T) {
	_, err := NewOrchestrator(nil, timeline.NewStore(), "t")
	require.Error(t, err)

	_, err = NewOrchestrator(&fakeAgent{}, nil, "t")
	require.Error(t, err)

	_, err = NewOrchestrator(&fakeAgent{}, timeline.NewStore(), " ")
	require.Error(t, err)
}

func TestSubmitChatTurn_HappyPath(t *testing.T) {
	agent := &fakeAgent{chatReply: domain.ChatReply{Response: "Attention is a mechanism..."}}
	o := newTestOrchestrator(t, agent)

	accepted, err := o.SubmitChatTurn(context.Background(), "What is attention?")
	require.NoError(t, err)
	require.True(t, accepted)
	o.Wait()

	require.Equal(t, []string{"user:What is attention?", "agent:Attention is a mechanism..."}, texts(o.Snapshot()))
	require.False(t, o.Flags().ChatPending)
	require.Equal(t, []domain.ChatRequest{{Message: "What is attention?", ThreadID: "thread-1"}}, agent.chatRequests())
}

func TestSubmitChatTurn_FailureBecomesAgentEvent(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{name: "transport", err: errors.New("dial tcp: connection refused")},
		{name: "remote", err: &agentapi.HTTPStatusError{StatusCode: http.StatusInternalServerError}},
		{name: "malformed", err: &agentapi.MalformedResponseError{Op: "chat", Err: errors.New("bad json")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrchestrator(t, &fakeAgent{chatErr: tc.err})

			accepted, err := o.SubmitChatTurn(context.Background(), "hello")
			require.NoError(t, err)
			require.True(t, accepted)
			o.Wait()

			require.Equal(t, []string{"user:hello", "agent:" + ChatErrorText}, texts(o.Snapshot()))
			require.False(t, o.Flags().ChatPending)
		})
	}
}

func TestSubmitChatTurn_EmptyReplyIsFailure(t *testing.T) {
	o := newTestOrchestrator(t, &fakeAgent{chatReply: domain.ChatReply{Response: "  "}})

	_, err := o.SubmitChatTurn(context.Background(), "hello")
	require.NoError(t, err)
	o.Wait()

	require.Equal(t, []string{"user:hello", "agent:" + ChatErrorText}, texts(o.Snapshot()))
}

func TestSubmitChatTurn_AgentPanicIsAbsorbed(t *testing.T) {
	o := newTestOrchestrator(t, panicAgent{})

	_, err := o.SubmitChatTurn(context.Background(), "hello")
	require.NoError(t, err)
	o.Wait()

	require.Equal(t, []string{"user:hello", "agent:" + ChatErrorText}, texts(o.Snapshot()))
	require.False(t, o.Flags().ChatPending)
}

func TestSubmitChatTurn_WhitespaceIsNoop(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n "} {
		agent := &fakeAgent{}
		o := newTestOrchestrator(t, agent)
		changes, cancel := o.Subscribe()

		accepted, err := o.SubmitChatTurn(context.Background(), in)
		require.NoError(t, err)
		require.False(t, accepted)
		o.Wait()

		require.Empty(t, o.Snapshot())
		require.Empty(t, agent.chatRequests())
		require.False(t, o.Flags().ChatPending)
		select {
		case <-changes:
			t.Fatalf("no change expected for input %q", in)
		default:
		}
		cancel()
	}
}

func TestSubmitChatTurn_TrimsInput(t *testing.T) {
	agent := &fakeAgent{chatReply: domain.ChatReply{Response: "hi there"}}
	o := newTestOrchestrator(t, agent)

	_, err := o.SubmitChatTurn(context.Background(), "  hello  \n")
	require.NoError(t, err)
	o.Wait()

	require.Equal(t, "hello", o.Snapshot()[0].Text)
	require.Equal(t, "hello", agent.chatRequests()[0].Message)
}

func TestSubmitChatTurn_UserEventCommittedBeforeSettlement(t *testing.T) {
	gate := make(chan struct{})
	agent := &fakeAgent{chatGate: gate, chatReply: domain.ChatReply{Response: "done"}}
	o := newTestOrchestrator(t, agent)

	_, err := o.SubmitChatTurn(context.Background(), "slow question")
	require.NoError(t, err)

	require.Equal(t, []string{"user:slow question"}, texts(o.Snapshot()))
	require.True(t, o.Flags().ChatPending)

	close(gate)
	o.Wait()
	require.Equal(t, []string{"user:slow question", "agent:done"}, texts(o.Snapshot()))
	require.False(t, o.Flags().ChatPending)
}

func TestSubmitChatTurn_RejectsWhilePending(t *testing.T) {
	gate := make(chan struct{})
	agent := &fakeAgent{chatGate: gate, chatReply: domain.ChatReply{Response: "first answer"}}
	o := newTestOrchestrator(t, agent)

	_, err := o.SubmitChatTurn(context.Background(), "first")
	require.NoError(t, err)

	accepted, err := o.SubmitChatTurn(context.Background(), "second")
	require.ErrorIs(t, err, ErrChatPending)
	require.False(t, accepted)

	close(gate)
	o.Wait()
	require.Equal(t, []string{"user:first", "agent:first answer"}, texts(o.Snapshot()))
	require.Len(t, agent.chatRequests(), 1)

	_, err = o.SubmitChatTurn(context.Background(), "third")
	require.NoError(t, err)
	o.Wait()
	require.Len(t, o.Snapshot(), 4)
}

func TestSubmitChatTurn_ThreadIDStableAcrossTurns(t *testing.T) {
	agent := &fakeAgent{chatReply: domain.ChatReply{Response: "ok"}}
	o := newTestOrchestrator(t, agent)

	for _, q := range []string{"one", "two", "three"} {
		_, err := o.SubmitChatTurn(context.Background(), q)
		require.NoError(t, err)
		o.Wait()
	}
	for _, req := range agent.chatRequests() {
		require.Equal(t, "thread-1", req.ThreadID)
	}
	require.Equal(t, "thread-1", o.ThreadID())
}

func TestSubmitChatTurn_IgnoresCallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	o := newTestOrchestrator(t, &fakeAgent{chatGate: gate, chatReply: domain.ChatReply{Response: "still here"}})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := o.SubmitChatTurn(ctx, "hello")
	require.NoError(t, err)
	cancel()

	close(gate)
	o.Wait()
	require.Equal(t, []string{"user:hello", "agent:still here"}, texts(o.Snapshot()))
}

func TestSubmitDocument_Success(t *testing.T) {
	agent := &fakeAgent{ingestRes: domain.IngestResult{ChunksCreated: 12}}
	o := newTestOrchestrator(t, agent)

	accepted, err := o.SubmitDocument(context.Background(), pdf("paper.pdf", "%PDF"))
	require.NoError(t, err)
	require.True(t, accepted)
	o.Wait()

	flags := o.Flags()
	require.Contains(t, flags.StatusMessage, "12")
	require.False(t, flags.UploadPending)
	require.Empty(t, o.Snapshot())
	require.Equal(t, []string{"paper.pdf"}, agent.ingestCalls)
	require.Equal(t, []string{"%PDF"}, agent.ingestBody)
}

func TestSubmitDocument_ProcessingWhilePending(t *testing.T) {
	gate := make(chan struct{})
	o := newTestOrchestrator(t, &fakeAgent{ingestGate: gate, ingestRes: domain.IngestResult{ChunksCreated: 3}})

	_, err := o.SubmitDocument(context.Background(), pdf("paper.pdf", "%PDF"))
	require.NoError(t, err)

	flags := o.Flags()
	require.True(t, flags.UploadPending)
	require.Equal(t, StatusProcessing, flags.StatusMessage)

	accepted, err := o.SubmitDocument(context.Background(), pdf("other.pdf", "%PDF"))
	require.ErrorIs(t, err, ErrUploadPending)
	require.False(t, accepted)

	close(gate)
	o.Wait()
	require.Equal(t, "Success! Split into 3 chunks.", o.Flags().StatusMessage)
}

func TestSubmitDocument_FailureTouchesOnlyStatus(t *testing.T) {
	o := newTestOrchestrator(t, &fakeAgent{ingestErr: &agentapi.HTTPStatusError{StatusCode: 500}})

	_, err := o.SubmitDocument(context.Background(), pdf("paper.pdf", "%PDF"))
	require.NoError(t, err)
	o.Wait()

	flags := o.Flags()
	require.Equal(t, StatusFailed, flags.StatusMessage)
	require.False(t, flags.UploadPending)
	require.False(t, flags.ChatPending)
	require.Empty(t, o.Snapshot())
}

func TestSubmitDocument_PanicIsAbsorbed(t *testing.T) {
	o := newTestOrchestrator(t, panicAgent{})

	_, err := o.SubmitDocument(context.Background(), pdf("paper.pdf", "%PDF"))
	require.NoError(t, err)
	o.Wait()
	require.Equal(t, StatusFailed, o.Flags().StatusMessage)
	require.False(t, o.Flags().UploadPending)
}

func TestSubmitDocument_NoFileIsNoop(t *testing.T) {
	agent := &fakeAgent{}
	o := newTestOrchestrator(t, agent)

	accepted, err := o.SubmitDocument(context.Background(), Document{})
	require.NoError(t, err)
	require.False(t, accepted)

	accepted, err = o.SubmitDocument(context.Background(), Document{Name: "paper.pdf"})
	require.NoError(t, err)
	require.False(t, accepted)

	require.Equal(t, domain.Flags{}, o.Flags())
	require.Empty(t, agent.ingestCalls)
}

func TestSubmitDocument_ClosesBody(t *testing.T) {
	o := newTestOrchestrator(t, &fakeAgent{ingestRes: domain.IngestResult{ChunksCreated: 1}})
	body := &closeTracker{Reader: strings.NewReader("%PDF")}

	_, err := o.SubmitDocument(context.Background(), Document{Name: "paper.pdf", Body: body})
	require.NoError(t, err)
	o.Wait()
	require.True(t, body.closed)
}

func TestSubmitDocument_RejectedBodyIsClosed(t *testing.T) {
	gate := make(chan struct{})
	o := newTestOrchestrator(t, &fakeAgent{ingestGate: gate, ingestRes: domain.IngestResult{ChunksCreated: 1}})

	_, err := o.SubmitDocument(context.Background(), pdf("a.pdf", "%PDF"))
	require.NoError(t, err)

	body := &closeTracker{Reader: strings.NewReader("%PDF")}
	_, err = o.SubmitDocument(context.Background(), Document{Name: "b.pdf", Body: body})
	require.ErrorIs(t, err, ErrUploadPending)
	require.True(t, body.closed)

	close(gate)
	o.Wait()
}

func TestStatusMessage_ReflectsLatestAttempt(t *testing.T) {
	agent := &fakeAgent{ingestRes: domain.IngestResult{ChunksCreated: 5}}
	o := newTestOrchestrator(t, agent)

	_, err := o.SubmitDocument(context.Background(), pdf("a.pdf", "a"))
	require.NoError(t, err)
	o.Wait()
	require.Equal(t, "Success! Split into 5 chunks.", o.Flags().StatusMessage)

	agent.mu.Lock()
	agent.ingestErr = errors.New("connection reset")
	agent.mu.Unlock()
	_, err = o.SubmitDocument(context.Background(), pdf("b.pdf", "b"))
	require.NoError(t, err)
	o.Wait()
	require.Equal(t, StatusFailed, o.Flags().StatusMessage)
}

func TestChannels_AreIndependent(t *testing.T) {
	chatGate := make(chan struct{})
	ingestGate := make(chan struct{})
	agent := &fakeAgent{
		chatGate:   chatGate,
		chatReply:  domain.ChatReply{Response: "answer"},
		ingestGate: ingestGate,
		ingestErr:  errors.New("upload broke"),
	}
	o := newTestOrchestrator(t, agent)

	_, err := o.SubmitChatTurn(context.Background(), "question")
	require.NoError(t, err)
	_, err = o.SubmitDocument(context.Background(), pdf("paper.pdf", "%PDF"))
	require.NoError(t, err)

	flags := o.Flags()
	require.True(t, flags.ChatPending)
	require.True(t, flags.UploadPending)

	close(ingestGate)
	require.Eventually(t, func() bool { return !o.Flags().UploadPending }, time.Second, 5*time.Millisecond)
	flags = o.Flags()
	require.True(t, flags.ChatPending)
	require.Equal(t, StatusFailed, flags.StatusMessage)
	require.Equal(t, []string{"user:question"}, texts(o.Snapshot()))

	close(chatGate)
	o.Wait()
	require.Equal(t, []string{"user:question", "agent:answer"}, texts(o.Snapshot()))
	require.Equal(t, StatusFailed, o.Flags().StatusMessage)
}

func TestSubscribe_NotifiedOnEveryTransition(t *testing.T) {
	gate := make(chan struct{})
	o := newTestOrchestrator(t, &fakeAgent{chatGate: gate, chatReply: domain.ChatReply{Response: "ok"}})
	changes, cancel := o.Subscribe()
	defer cancel()

	_, err := o.SubmitChatTurn(context.Background(), "hello")
	require.NoError(t, err)
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected notification on dispatch")
	}

	close(gate)
	o.Wait()
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected notification on settlement")
	}
}

func TestWaitContext(t *testing.T) {
	gate := make(chan struct{})
	o := newTestOrchestrator(t, &fakeAgent{chatGate: gate, chatReply: domain.ChatReply{Response: "late"}})

	_, err := o.SubmitChatTurn(context.Background(), "slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, o.WaitContext(ctx), context.DeadlineExceeded)
	require.True(t, o.Flags().ChatPending, "the call keeps running")

	close(gate)
	require.NoError(t, o.WaitContext(context.Background()))
	require.Equal(t, []string{"user:slow", "agent:late"}, texts(o.Snapshot()))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   ErrorCode
		reason string
	}{
		{"status", &agentapi.HTTPStatusError{StatusCode: 502}, ErrorRemote, "chat_http_502"},
		{"wrapped status", errors.Join(errors.New("ctx"), &agentapi.HTTPStatusError{StatusCode: 500}), ErrorRemote, "chat_http_500"},
		{"malformed", &agentapi.MalformedResponseError{Op: "chat", Err: errors.New("x")}, ErrorMalformed, "chat_malformed_response"},
		{"transport", errors.New("connection refused"), ErrorTransport, "chat_transport_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify("chat", tc.err)
			require.Equal(t, tc.code, got.Code)
			require.Equal(t, tc.reason, got.Reason)
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassify_KeepsServiceDetail(t *testing.T) {
	err := fmt.Errorf("agentapi: upload request failed: %w",
		&agentapi.HTTPStatusError{StatusCode: 422, Body: `{"detail":"Only PDF files are supported"}`})

	got := classify("upload", err)
	require.Equal(t, ErrorRemote, got.Code)
	require.Equal(t, "Only PDF files are supported", got.Detail)
	require.Empty(t, classify("chat", errors.New("connection refused")).Detail)
}

func TestFailureLog_IncludesServiceDetail(t *testing.T) {
	var logs bytes.Buffer
	agent := &fakeAgent{chatErr: &agentapi.HTTPStatusError{StatusCode: 500, Body: `{"detail":"vector store unavailable"}`}}
	o, err := NewOrchestrator(agent, timeline.NewStore(), "thread-1",
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))
	require.NoError(t, err)

	_, err = o.SubmitChatTurn(context.Background(), "hello")
	require.NoError(t, err)
	o.Wait()

	require.Contains(t, logs.String(), `"detail":"vector store unavailable"`)
	require.Contains(t, logs.String(), `"failure_kind":"REMOTE_FAILURE"`)
}

func TestError_Message(t *testing.T) {
	e := newError(ErrorTransport, "chat_transport_error", errors.New("refused"))
	require.Equal(t, "usecase: TRANSPORT_FAILURE (chat_transport_error): refused", e.Error())
	require.Equal(t, "usecase: REMOTE_FAILURE (x)", newError(ErrorRemote, "x", nil).Error())
}
