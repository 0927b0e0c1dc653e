package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/observability/metrics"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// ReplySender delivers the final text back to the sender.
type ReplySender interface {
	SendText(ctx context.Context, to, body string) error
}

// WebhookHandler authenticates and parses Twilio WhatsApp webhooks, runs the
// pipeline, and replies on the same channel.
type WebhookHandler struct {
	processor         conversation.TurnProcessor
	sender            ReplySender
	authToken         string
	validateSignature bool
	metrics           *metrics.PipelineMetrics
	logger            *logging.Logger
}

// NewWebhookHandler builds the inbound handler. Signature validation must
// stay enabled in production; tests disable it explicitly.
func NewWebhookHandler(processor conversation.TurnProcessor, sender ReplySender, authToken string, validateSignature bool, m *metrics.PipelineMetrics, logger *logging.Logger) *WebhookHandler {
	if processor == nil {
		panic("twilio: processor cannot be nil")
	}
	if sender == nil {
		panic("twilio: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		processor:         processor,
		sender:            sender,
		authToken:         authToken,
		validateSignature: validateSignature,
		metrics:           m,
		logger:            logger,
	}
}

// HandleInbound processes one webhook POST.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ignored(w, "unparseable form")
		return
	}

	if h.validateSignature && !h.signatureValid(r) {
		h.metrics.ObserveInbound("twilio", "auth_denied")
		h.logger.Warn("twilio signature rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" {
		h.ignored(w, "missing sender")
		return
	}

	numMedia := 0
	if raw := r.PostForm.Get("NumMedia"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			numMedia = n
		}
	}

	senderID := r.PostForm.Get("WaId")
	if senderID == "" {
		senderID = from
	}

	result, err := h.processor.ProcessTurn(r.Context(), conversation.InboundMessage{
		Channel:       conversation.ChannelTwilio,
		SenderID:      senderID,
		Text:          body,
		MediaCount:    numMedia,
		CorrelationID: r.PostForm.Get("MessageSid"),
	})
	if errors.Is(err, conversation.ErrIgnored) {
		h.ignored(w, "no text to answer")
		return
	}
	if err != nil {
		h.metrics.ObserveInbound("twilio", "error")
		h.logger.Error("twilio turn failed", "error", err, "sender", logging.SenderHash(senderID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.sender.SendText(r.Context(), from, result.FinalText); err != nil {
		h.metrics.ObserveDelivery("twilio", "error")
		h.logger.Error("twilio reply failed", "error", err, "sender", logging.SenderHash(senderID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound("twilio", "ok")
	h.metrics.ObserveDelivery("twilio", "ok")
	h.logger.Info("twilio reply sent", "sender", logging.SenderHash(senderID), "escalate", result.Escalate)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ignored answers 200 so Twilio does not retry; malformed payloads are a
// silent outcome, not an error.
func (h *WebhookHandler) ignored(w http.ResponseWriter, reason string) {
	h.metrics.ObserveInbound("twilio", "ignored")
	h.logger.Debug("twilio webhook ignored", "reason", reason)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ignored"})
}

func (h *WebhookHandler) signatureValid(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	payload := buildSignaturePayload(requestURL(r), r.PostForm)
	expected := computeSignature(payload, h.authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// requestURL reconstructs the public URL Twilio signed: scheme, host, path
// and query, with the forwarded proto and host winning over the local ones.
// Behind the lambda proxy the request reaches us with the internal host, so
// the forwarded host is the one the signature was computed over.
func requestURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	u := scheme + "://" + host + r.URL.Path
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

// buildSignaturePayload creates the payload string for signature verification:
// the full URL followed by every POST parameter in sorted key order.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature Twilio uses.
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
