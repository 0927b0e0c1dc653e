package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanstyle/supportbot/internal/session"
)

type memorySessionStore struct {
	states map[string]session.State
	getErr error
	putErr error
	puts   int
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{states: make(map[string]session.State)}
}

func (m *memorySessionStore) Get(_ context.Context, senderID string) (*session.State, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	state, ok := m.states[senderID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *memorySessionStore) Put(_ context.Context, senderID string, state session.State) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.states[senderID] = state
	return nil
}

type stubAnswerGenerator struct {
	answer GeneratedAnswer
	err    error
	calls  int
}

func (s *stubAnswerGenerator) Generate(_ context.Context, _ string, _ *session.State) (GeneratedAnswer, error) {
	s.calls++
	return s.answer, s.err
}

func faqMessage(text string) InboundMessage {
	return InboundMessage{Channel: ChannelTwilio, SenderID: "628123456789", Text: text}
}

func TestProcessTurnFAQ(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Buka 9-21", Confidence: 0.9}}
	svc := NewService(gen, store, testDenylist, nil, nil)

	got, err := svc.ProcessTurn(context.Background(), faqMessage("Apa jam buka toko?"))
	require.NoError(t, err)
	assert.Equal(t, "Buka 9-21", got.FinalText)
	assert.Equal(t, IntentFAQ, got.Intent)
	// Blended confidence never exceeds the classifier's own.
	assert.Equal(t, 0.70, got.Confidence)
	assert.False(t, got.Escalate)

	saved := store.states["628123456789"]
	assert.Equal(t, "faq", saved.LastIntent)
	assert.Equal(t, "Buka 9-21", saved.LastReply)
	assert.False(t, saved.Escalation)
	assert.Equal(t, "0.90", saved.Attributes["model_confidence"])
}

func TestProcessTurnLowGenerationConfidenceEscalates(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Mungkin begitu.", Confidence: 0.2}}
	svc := NewService(gen, store, testDenylist, nil, nil)

	got, err := svc.ProcessTurn(context.Background(), faqMessage("berapa harga kaos?"))
	require.NoError(t, err)
	assert.Equal(t, LowConfidenceReply, got.FinalText)
	assert.True(t, got.Escalate)
	assert.True(t, store.states["628123456789"].Escalation)
}

func TestProcessTurnDenylistedAnswer(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Kode OTP akun Anda adalah 1234.", Confidence: 0.95}}
	svc := NewService(gen, store, testDenylist, nil, nil)

	got, err := svc.ProcessTurn(context.Background(), faqMessage("informasi akun saya"))
	require.NoError(t, err)
	assert.Equal(t, DenylistReply, got.FinalText)
	assert.True(t, got.Escalate)
}

func TestProcessTurnOrderStatusShortCircuits(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{}
	svc := NewService(gen, store, testDenylist, nil, nil)

	got, err := svc.ProcessTurn(context.Background(), faqMessage("status pesanan saya?"))
	require.NoError(t, err)
	assert.Equal(t, OrderStatusReply(), got.FinalText)
	assert.Equal(t, IntentOrderStatus, got.Intent)
	assert.Equal(t, orderStatusConfidence, got.Confidence)
	assert.False(t, got.Escalate)
	assert.Zero(t, gen.calls, "order status must never reach generation")
}

func TestProcessTurnOutOfScopeOverride(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Jawaban apapun", Confidence: 0.99}}
	svc := NewService(gen, store, testDenylist, nil, nil)

	got, err := svc.ProcessTurn(context.Background(), faqMessage("halo"))
	require.NoError(t, err)
	assert.Equal(t, LowConfidenceReply, got.FinalText)
	assert.Equal(t, IntentOutOfScope, got.Intent)
	assert.True(t, got.Escalate)
	assert.Zero(t, gen.calls, "out of scope must never reach generation")
	assert.True(t, store.states["628123456789"].Escalation)
}

func TestProcessTurnIgnoresEmptyText(t *testing.T) {
	store := newMemorySessionStore()
	svc := NewService(&stubAnswerGenerator{}, store, nil, nil, nil)

	_, err := svc.ProcessTurn(context.Background(), InboundMessage{Channel: ChannelTwilio, SenderID: "u1", Text: "  ", MediaCount: 2})
	assert.ErrorIs(t, err, ErrIgnored)
	assert.Zero(t, store.puts)
}

func TestProcessTurnIgnoresMediaWithCaption(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Buka 9-21", Confidence: 0.9}}
	svc := NewService(gen, store, testDenylist, nil, nil)

	msg := faqMessage("jam buka toko?")
	msg.MediaCount = 2

	_, err := svc.ProcessTurn(context.Background(), msg)
	assert.ErrorIs(t, err, ErrIgnored)
	assert.Zero(t, gen.calls, "media messages must never reach generation")
	assert.Zero(t, store.puts)
}

func TestProcessTurnSessionOverwrite(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Buka 9-21", Confidence: 0.9}}
	svc := NewService(gen, store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ProcessTurn(ctx, faqMessage("Apa jam buka toko?"))
	require.NoError(t, err)
	first := store.states["628123456789"]
	first.Attributes["extra"] = "stale"
	store.states["628123456789"] = first

	_, err = svc.ProcessTurn(ctx, faqMessage("status pesanan"))
	require.NoError(t, err)

	second := store.states["628123456789"]
	assert.Equal(t, "order_status", second.LastIntent)
	assert.NotContains(t, second.Attributes, "extra", "each turn fully overwrites the record")
}

func TestProcessTurnStorageErrorsPropagate(t *testing.T) {
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "ok", Confidence: 0.9}}

	store := newMemorySessionStore()
	store.getErr = errors.New("dynamodb unavailable")
	svc := NewService(gen, store, nil, nil, nil)
	_, err := svc.ProcessTurn(context.Background(), faqMessage("Apa jam buka toko?"))
	assert.ErrorContains(t, err, "dynamodb unavailable")

	store = newMemorySessionStore()
	store.putErr = errors.New("dynamodb unavailable")
	svc = NewService(gen, store, nil, nil, nil)
	_, err = svc.ProcessTurn(context.Background(), faqMessage("Apa jam buka toko?"))
	assert.ErrorContains(t, err, "dynamodb unavailable")
}

func TestProcessTurnGenerationFailureWritesNoSession(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{err: errors.New("bedrock throttled")}
	svc := NewService(gen, store, nil, nil, nil)

	_, err := svc.ProcessTurn(context.Background(), faqMessage("Apa jam buka toko?"))
	assert.ErrorContains(t, err, "bedrock throttled")
	assert.Zero(t, store.puts, "failed turns must not write a partial session")
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) NotifyEscalation(_ context.Context, _ Intent, _, _ string) error {
	r.calls++
	return r.err
}

func TestProcessTurnNotifiesOnEscalation(t *testing.T) {
	store := newMemorySessionStore()
	gen := &stubAnswerGenerator{answer: GeneratedAnswer{Answer: "Buka 9-21", Confidence: 0.9}}
	notifier := &recordingNotifier{err: errors.New("ses down")}
	svc := NewService(gen, store, nil, nil, nil).WithEscalationNotifier(notifier)

	// Safe turn: no notification.
	_, err := svc.ProcessTurn(context.Background(), faqMessage("Apa jam buka toko?"))
	require.NoError(t, err)
	assert.Zero(t, notifier.calls)

	// Escalated turn: notified, and the notifier failure does not fail the turn.
	_, err = svc.ProcessTurn(context.Background(), faqMessage("halo"))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.calls)
}
