package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu     sync.Mutex
	inputs []InboundMessage
	result TurnResult
	err    error
}

func (p *recordingProcessor) ProcessTurn(_ context.Context, msg InboundMessage) (TurnResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, msg)
	return p.result, p.err
}

func (p *recordingProcessor) calls() []InboundMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]InboundMessage(nil), p.inputs...)
}

type recordingPoster struct {
	mu    sync.Mutex
	posts []string
	err   error
}

func (p *recordingPoster) PostFollowup(_ context.Context, applicationID, token, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, applicationID+"/"+token+": "+content)
	return p.err
}

func (p *recordingPoster) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.posts...)
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerProcessesFollowupTask(t *testing.T) {
	queue := NewMemoryQueue(8)
	processor := &recordingProcessor{result: TurnResult{FinalText: "Buka 9-21", Intent: IntentFAQ}}
	poster := &recordingPoster{}
	worker := NewWorker(processor, queue, poster, nil, WithWorkerCount(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, nil)
	require.NoError(t, publisher.EnqueueFollowup(ctx, DeferredTask{
		Question:      "kapan buka?",
		UserID:        "9001",
		ReplyToken:    "tok-1",
		ApplicationID: "app-1",
	}))

	waitFor(t, func() bool { return len(poster.all()) == 1 })
	assert.Equal(t, []string{"app-1/tok-1: Buka 9-21"}, poster.all())

	calls := processor.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ChannelDiscord, calls[0].Channel)
	assert.Equal(t, "9001", calls[0].SenderID)
	assert.Equal(t, "kapan buka?", calls[0].Text)

	cancel()
	worker.Wait()
	// Exactly one post: the task is consumed at most once.
	assert.Len(t, poster.all(), 1)
}

func TestWorkerTurnFailurePostsNothing(t *testing.T) {
	queue := NewMemoryQueue(8)
	processor := &recordingProcessor{err: errors.New("bedrock down")}
	poster := &recordingPoster{}
	worker := NewWorker(processor, queue, poster, nil, WithWorkerCount(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, nil)
	require.NoError(t, publisher.EnqueueFollowup(ctx, DeferredTask{
		Question:      "kapan buka?",
		UserID:        "9001",
		ReplyToken:    "tok-1",
		ApplicationID: "app-1",
	}))

	waitFor(t, func() bool { return len(processor.calls()) == 1 })
	cancel()
	worker.Wait()
	assert.Empty(t, poster.all(), "failed turns must not post a follow-up")
}

func TestWorkerSkipsTaskMissingIdentifiers(t *testing.T) {
	queue := NewMemoryQueue(8)
	processor := &recordingProcessor{result: TurnResult{FinalText: "ok"}}
	poster := &recordingPoster{}
	worker := NewWorker(processor, queue, poster, nil, WithWorkerCount(1), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	noTokens := newFollowupPayload(DeferredTask{Question: "kapan buka?", UserID: "9001"})
	require.NoError(t, queue.Enqueue(ctx, noTokens))

	wrongKind := newFollowupPayload(DeferredTask{Question: "kapan buka?", UserID: "9001", ReplyToken: "tok", ApplicationID: "app"})
	wrongKind.Kind = taskKind("email_digest")
	require.NoError(t, queue.Enqueue(ctx, wrongKind))

	// Give the worker a moment to drain both tasks.
	time.Sleep(200 * time.Millisecond)
	cancel()
	worker.Wait()
	assert.Empty(t, processor.calls())
	assert.Empty(t, poster.all())
}

func TestNewFollowupPayload(t *testing.T) {
	task := DeferredTask{Question: "kapan buka?", UserID: "9001", ReplyToken: "tok", ApplicationID: "app"}
	payload := newFollowupPayload(task)
	assert.NotEmpty(t, payload.ID)
	assert.Equal(t, taskKindFollowup, payload.Kind)
	assert.Equal(t, task, payload.Task)
}
