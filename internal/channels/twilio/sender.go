// Package twilio adapts the Twilio WhatsApp webhook and REST API to the
// conversation pipeline.
package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/urbanstyle/supportbot/internal/delivery"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const defaultAPIBase = "https://api.twilio.com"

// Sender delivers replies through the Twilio Messages API.
type Sender struct {
	httpClient          *http.Client
	apiBase             string
	accountSID          string
	authToken           string
	messagingServiceSID string
	from                string
	retry               delivery.Policy
	logger              *logging.Logger
}

// SenderConfig carries the delivery identifiers. Either MessagingServiceSID
// or From must be set; Validate on the top-level config enforces that before
// the sender is built.
type SenderConfig struct {
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	From                string
	APIBase             string
	Retry               delivery.Policy
}

// NewSender builds a Twilio sender.
func NewSender(cfg SenderConfig, logger *logging.Logger) *Sender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		panic("twilio: account SID and auth token cannot be empty")
	}
	if cfg.MessagingServiceSID == "" && cfg.From == "" {
		panic("twilio: either messaging service SID or from address is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		httpClient:          &http.Client{Timeout: 15 * time.Second},
		apiBase:             strings.TrimRight(cfg.APIBase, "/"),
		accountSID:          cfg.AccountSID,
		authToken:           cfg.AuthToken,
		messagingServiceSID: cfg.MessagingServiceSID,
		from:                cfg.From,
		retry:               cfg.Retry,
		logger:              logger,
	}
}

// SendText sends a WhatsApp text message. Server-side API failures are
// retried with doubling backoff; everything else fails immediately.
func (s *Sender) SendText(ctx context.Context, to, body string) error {
	normalized, err := normalizeWhatsAppAddress(to)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", normalized)
	form.Set("Body", body)
	if s.messagingServiceSID != "" {
		form.Set("MessagingServiceSid", s.messagingServiceSID)
	} else {
		form.Set("From", s.from)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiBase, s.accountSID)

	err = delivery.WithRetry(ctx, s.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("twilio: build request: %w", err)
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("twilio: send message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &delivery.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("twilio send failed", "error", err, "to", logging.SenderHash(to))
		return err
	}
	return nil
}

// normalizeWhatsAppAddress ensures the whatsapp: channel prefix Twilio
// requires on both ends of a WhatsApp message.
func normalizeWhatsAppAddress(to string) (string, error) {
	if strings.HasPrefix(to, "whatsapp:") {
		return to, nil
	}
	if strings.HasPrefix(to, "+") {
		return "whatsapp:" + to, nil
	}
	return "", fmt.Errorf("twilio: to address %q must be 'whatsapp:+<number>' or '+<number>'", to[:min(len(to), 6)])
}
