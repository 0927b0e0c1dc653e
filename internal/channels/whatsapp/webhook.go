// Package whatsapp adapts the WhatsApp Cloud (Graph) webhook and send API
// to the conversation pipeline.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/observability/metrics"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// WebhookEvent is the Graph webhook envelope.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

type Contact struct {
	WaID string `json:"wa_id"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *Text  `json:"text"`
}

type Text struct {
	Body string `json:"body"`
}

// ReplySender delivers the final text back to the sender.
type ReplySender interface {
	SendText(ctx context.Context, to, body string) error
}

// WebhookHandler handles the Graph verification handshake and inbound
// message notifications.
type WebhookHandler struct {
	processor   conversation.TurnProcessor
	sender      ReplySender
	verifyToken string
	metrics     *metrics.PipelineMetrics
	logger      *logging.Logger
}

// NewWebhookHandler builds the Cloud API webhook handler.
func NewWebhookHandler(processor conversation.TurnProcessor, sender ReplySender, verifyToken string, m *metrics.PipelineMetrics, logger *logging.Logger) *WebhookHandler {
	if processor == nil {
		panic("whatsapp: processor cannot be nil")
	}
	if sender == nil {
		panic("whatsapp: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		processor:   processor,
		sender:      sender,
		verifyToken: verifyToken,
		metrics:     m,
		logger:      logger,
	}
}

// HandleVerification answers the GET registration handshake: succeed only
// for mode "subscribe" with the matching token, echoing the challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound processes one webhook POST. Malformed or non-text payloads
// are acknowledged and dropped so Meta does not retry them.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.ignored(w, "unreadable body")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.ignored(w, "malformed json")
		return
	}

	msg, ok := extractTextMessage(event)
	if !ok {
		h.ignored(w, "no text message")
		return
	}

	result, err := h.processor.ProcessTurn(r.Context(), msg)
	if errors.Is(err, conversation.ErrIgnored) {
		h.ignored(w, "no text to answer")
		return
	}
	if err != nil {
		h.metrics.ObserveInbound("whatsapp", "error")
		h.logger.Error("whatsapp turn failed", "error", err, "sender", logging.SenderHash(msg.SenderID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.sender.SendText(r.Context(), msg.SenderID, result.FinalText); err != nil {
		h.metrics.ObserveDelivery("whatsapp", "error")
		h.logger.Error("whatsapp reply failed", "error", err, "sender", logging.SenderHash(msg.SenderID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound("whatsapp", "ok")
	h.metrics.ObserveDelivery("whatsapp", "ok")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *WebhookHandler) ignored(w http.ResponseWriter, reason string) {
	h.metrics.ObserveInbound("whatsapp", "ignored")
	h.logger.Debug("whatsapp webhook ignored", "reason", reason)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ignored"})
}

// extractTextMessage finds the first text message with a non-empty body.
// The sender id comes from the contact record when present, falling back to
// the message's own from field.
func extractTextMessage(event WebhookEvent) (conversation.InboundMessage, bool) {
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			for _, msg := range value.Messages {
				if msg.Type != "text" || msg.Text == nil || msg.Text.Body == "" {
					continue
				}

				senderID := msg.From
				if len(value.Contacts) > 0 && value.Contacts[0].WaID != "" {
					senderID = value.Contacts[0].WaID
				}
				if senderID == "" {
					continue
				}

				return conversation.InboundMessage{
					Channel:       conversation.ChannelWhatsApp,
					SenderID:      senderID,
					Text:          msg.Text.Body,
					CorrelationID: msg.ID,
				}, true
			}
		}
	}
	return conversation.InboundMessage{}, false
}
