package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urbanstyle/supportbot/internal/delivery"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const (
	defaultGraphBase    = "https://graph.facebook.com"
	defaultGraphVersion = "v20.0"
)

// SenderConfig configures the Cloud API send client.
type SenderConfig struct {
	AccessToken   string
	PhoneNumberID string
	GraphBase     string
	GraphVersion  string
	Retry         delivery.Policy
}

// Sender delivers text replies through the WhatsApp Cloud API.
type Sender struct {
	cfg    SenderConfig
	client *http.Client
	logger *logging.Logger
}

// NewSender builds a Cloud API sender. It panics when credentials are
// missing so misconfiguration surfaces at startup.
func NewSender(cfg SenderConfig, client *http.Client, logger *logging.Logger) *Sender {
	if cfg.AccessToken == "" || cfg.PhoneNumberID == "" {
		panic("whatsapp: access token and phone number id are required")
	}
	if cfg.GraphBase == "" {
		cfg.GraphBase = defaultGraphBase
	}
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = defaultGraphVersion
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{cfg: cfg, client: client, logger: logger}
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText posts one text message to the recipient. Server-side failures
// are retried under the delivery policy; client errors are not.
func (s *Sender) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", s.cfg.GraphBase, s.cfg.GraphVersion, s.cfg.PhoneNumberID)

	err = delivery.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("whatsapp: build send request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("whatsapp: send message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &delivery.StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("whatsapp send failed", "error", err, "recipient", logging.SenderHash(to))
		return err
	}
	return nil
}
