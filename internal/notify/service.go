package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// Service sends operator notifications for conversation turns that need a
// human. It implements conversation.EscalationNotifier.
type Service struct {
	email       EmailSender
	operatorTo  string
	projectName string
	now         func() time.Time
	logger      *logging.Logger
}

// ServiceConfig holds operator notification settings.
type ServiceConfig struct {
	OperatorEmail string
	ProjectName   string
}

// NewService creates a notification service. A nil email sender disables
// notifications without breaking callers.
func NewService(email EmailSender, cfg ServiceConfig, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = "Support Bot"
	}
	return &Service{
		email:       email,
		operatorTo:  cfg.OperatorEmail,
		projectName: cfg.ProjectName,
		now:         time.Now,
		logger:      logger,
	}
}

// NotifyEscalation emails the operator about a turn the bot could not answer
// confidently. The sender marker is already redacted by the caller; raw
// sender ids never reach this package.
func (s *Service) NotifyEscalation(ctx context.Context, intent conversation.Intent, senderMarker, finalText string) error {
	if s.email == nil || s.operatorTo == "" {
		s.logger.Debug("notify: operator email not configured, skipping escalation notice")
		return nil
	}

	occurredAt := s.now().Format("2 January 2006 15:04 MST")

	var body strings.Builder
	body.WriteString("Ada percakapan yang membutuhkan tindak lanjut manusia.\n\n")
	fmt.Fprintf(&body, "Waktu: %s\n", occurredAt)
	fmt.Fprintf(&body, "Intent: %s\n", intent)
	fmt.Fprintf(&body, "Pengguna: %s\n", senderMarker)
	fmt.Fprintf(&body, "Balasan bot: %s\n", finalText)
	body.WriteString("\nMohon periksa dan balas pengguna melalui kanal terkait.\n")

	msg := EmailMessage{
		To:      s.operatorTo,
		ToName:  "Operator",
		Subject: fmt.Sprintf("[%s] Eskalasi percakapan (%s)", s.projectName, intent),
		Body:    body.String(),
	}

	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: escalation email: %w", err)
	}

	s.logger.Info("escalation notice sent", "intent", string(intent), "sender", senderMarker)
	return nil
}

// Ensure interface compliance
var _ conversation.EscalationNotifier = (*Service)(nil)
