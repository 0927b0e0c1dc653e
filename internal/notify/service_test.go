package notify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

type recordingEmailSender struct {
	err  error
	sent []EmailMessage
}

func (r *recordingEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestNotifyEscalationSendsOperatorEmail(t *testing.T) {
	email := &recordingEmailSender{}
	svc := NewService(email, ServiceConfig{OperatorEmail: "ops@example.com", ProjectName: "Toko Urban"}, logging.New("error"))
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	err := svc.NotifyEscalation(context.Background(), conversation.IntentFAQ, "a1b2c3d4e5f6", "Maaf, saya belum yakin dengan jawabannya.")
	if err != nil {
		t.Fatalf("NotifyEscalation() error = %v", err)
	}

	if len(email.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if msg.To != "ops@example.com" {
		t.Errorf("To = %q, want ops@example.com", msg.To)
	}
	if want := "[Toko Urban] Eskalasi percakapan (faq)"; msg.Subject != want {
		t.Errorf("Subject = %q, want %q", msg.Subject, want)
	}
	for _, fragment := range []string{"Intent: faq", "Pengguna: a1b2c3d4e5f6", "Balasan bot: Maaf, saya belum yakin dengan jawabannya.", "14 March 2026"} {
		if !strings.Contains(msg.Body, fragment) {
			t.Errorf("body missing %q:\n%s", fragment, msg.Body)
		}
	}
}

func TestNotifyEscalationSkipsWhenUnconfigured(t *testing.T) {
	tests := []struct {
		name string
		svc  *Service
	}{
		{"nil email sender", NewService(nil, ServiceConfig{OperatorEmail: "ops@example.com"}, nil)},
		{"no operator address", NewService(&recordingEmailSender{}, ServiceConfig{}, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.svc.NotifyEscalation(context.Background(), conversation.IntentOutOfScope, "marker", "text"); err != nil {
				t.Errorf("NotifyEscalation() error = %v, want nil", err)
			}
		})
	}
}

func TestNotifyEscalationWrapsSendFailure(t *testing.T) {
	email := &recordingEmailSender{err: fmt.Errorf("ses throttled")}
	svc := NewService(email, ServiceConfig{OperatorEmail: "ops@example.com"}, logging.New("error"))

	err := svc.NotifyEscalation(context.Background(), conversation.IntentFAQ, "marker", "text")
	if err == nil {
		t.Fatal("expected error from failing sender")
	}
	if !strings.Contains(err.Error(), "escalation email") {
		t.Errorf("error = %v, want wrapped escalation email error", err)
	}
}

func TestNewServiceDefaultProjectName(t *testing.T) {
	svc := NewService(&recordingEmailSender{}, ServiceConfig{OperatorEmail: "ops@example.com"}, nil)
	if svc.projectName != "Support Bot" {
		t.Errorf("projectName = %q, want Support Bot", svc.projectName)
	}
}
