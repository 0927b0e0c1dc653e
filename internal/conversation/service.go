package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/urbanstyle/supportbot/internal/observability/metrics"
	"github.com/urbanstyle/supportbot/internal/session"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// ErrIgnored marks inbound messages that carry nothing to answer, such as
// media-only messages. Callers respond with an "ignored" outcome, never an
// error status, so upstream webhooks do not retry.
var ErrIgnored = errors.New("conversation: message ignored")

var turnTracer = otel.Tracer("supportbot/conversation")

const orderStatusConfidence = 0.9

// AnswerGenerator is the generation collaborator contract used by the
// pipeline, implemented by Generator.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, sess *session.State) (GeneratedAnswer, error)
}

// EscalationNotifier tells a human operator about an escalated turn.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, intent Intent, senderMarker, finalText string) error
}

// Service runs the full pipeline for one inbound message: classify, read the
// session, generate, guard, overwrite the session. It is stateless across
// requests; every turn works from a fresh session read.
type Service struct {
	generator AnswerGenerator
	sessions  session.Store
	denylist  []string
	notifier  EscalationNotifier
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger
}

// NewService wires the pipeline. metrics may be nil in tests.
func NewService(generator AnswerGenerator, sessions session.Store, denylist []string, m *metrics.PipelineMetrics, logger *logging.Logger) *Service {
	if generator == nil {
		panic("conversation: generator cannot be nil")
	}
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		generator: generator,
		sessions:  sessions,
		denylist:  denylist,
		metrics:   m,
		logger:    logger,
	}
}

// WithEscalationNotifier wires operator notification for escalated turns.
// Notification failures are logged, never fatal to the turn.
func (s *Service) WithEscalationNotifier(n EscalationNotifier) *Service {
	s.notifier = n
	return s
}

// ProcessTurn runs one pipeline turn and returns the final reply decision.
// Media-bearing messages are ignored even when they carry a caption.
// Storage and generation failures propagate; nothing is written to the
// session for a turn that fails before the guardrail completes.
func (s *Service) ProcessTurn(ctx context.Context, msg InboundMessage) (TurnResult, error) {
	if msg.MediaCount > 0 {
		return TurnResult{}, ErrIgnored
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return TurnResult{}, ErrIgnored
	}

	ctx, span := turnTracer.Start(ctx, "conversation.turn")
	defer span.End()

	classification := Classify(text)
	senderMarker := logging.SenderHash(msg.SenderID)
	span.SetAttributes(
		attribute.String("channel", string(msg.Channel)),
		attribute.String("intent", string(classification.Intent)),
	)

	sess, err := s.sessions.Get(ctx, msg.SenderID)
	if err != nil {
		return TurnResult{}, err
	}

	s.logger.Info("message received",
		"channel", msg.Channel,
		"sender", senderMarker,
		"intent", classification.Intent,
		"confidence", classification.Confidence,
	)

	var (
		replyText  string
		confidence = classification.Confidence
		generated  *GeneratedAnswer
	)

	switch classification.Intent {
	case IntentOrderStatus:
		replyText = OrderStatusReply()
		confidence = orderStatusConfidence
	case IntentOutOfScope:
		replyText = LowConfidenceReply
	default:
		start := time.Now()
		answer, err := s.generator.Generate(ctx, text, sess)
		s.metrics.ObserveGenerationLatency("generate", time.Since(start).Seconds())
		if err != nil {
			s.logger.Error("generation failed", "error", err, "sender", senderMarker)
			return TurnResult{}, fmt.Errorf("conversation: generate answer: %w", err)
		}
		generated = &answer
		replyText = answer.Answer
		// Downstream confidence never exceeds the classifier's own.
		confidence = min(confidence, answer.Confidence)
	}

	guard := ApplyGuard(replyText, confidence, s.denylist)
	if classification.Intent == IntentOutOfScope {
		guard = GuardResult{FinalText: LowConfidenceReply, Escalate: true}
	}

	modelConfidence := confidence
	if generated != nil {
		modelConfidence = generated.Confidence
	}

	state := session.NewState(msg.SenderID)
	state.LastIntent = string(classification.Intent)
	state.LastReply = guard.FinalText
	state.Escalation = guard.Escalate || classification.Intent == IntentOutOfScope
	state.Attributes = map[string]string{
		"model_confidence": strconv.FormatFloat(modelConfidence, 'f', 2, 64),
	}
	if err := s.sessions.Put(ctx, msg.SenderID, state); err != nil {
		return TurnResult{}, err
	}

	s.metrics.ObserveTurn(string(classification.Intent), guard.Escalate)
	if guard.Escalate && s.notifier != nil {
		if err := s.notifier.NotifyEscalation(ctx, classification.Intent, senderMarker, guard.FinalText); err != nil {
			s.logger.Warn("escalation notification failed", "error", err, "sender", senderMarker)
		}
	}

	return TurnResult{
		FinalText:  guard.FinalText,
		Intent:     classification.Intent,
		Confidence: confidence,
		Escalate:   guard.Escalate,
	}, nil
}
