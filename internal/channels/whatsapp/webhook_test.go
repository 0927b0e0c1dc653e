package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

type stubProcessor struct {
	result conversation.TurnResult
	err    error
	last   conversation.InboundMessage
	calls  int
}

func (s *stubProcessor) ProcessTurn(_ context.Context, msg conversation.InboundMessage) (conversation.TurnResult, error) {
	s.calls++
	s.last = msg
	return s.result, s.err
}

type stubSender struct {
	err   error
	to    string
	body  string
	calls int
}

func (s *stubSender) SendText(_ context.Context, to, body string) error {
	s.calls++
	s.to = to
	s.body = body
	return s.err
}

func inboundEvent(text string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "entry-1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"contacts": [{"wa_id": "628111222333"}],
					"messages": [{
						"from": "628111222333",
						"id": "wamid.abc",
						"timestamp": "1700000000",
						"type": "text",
						"text": {"body": %q}
					}]
				}
			}]
		}]
	}`, text)
}

func TestHandleVerification(t *testing.T) {
	handler := NewWebhookHandler(&stubProcessor{}, &stubSender{}, "topsecret", nil, logging.New("error"))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid handshake", "hub.mode=subscribe&hub.verify_token=topsecret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=topsecret&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing token", "hub.mode=subscribe&hub.challenge=12345", http.StatusForbidden, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?"+tc.query, nil)
			rec := httptest.NewRecorder()
			handler.HandleVerification(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandleInboundRepliesToSender(t *testing.T) {
	proc := &stubProcessor{result: conversation.TurnResult{FinalText: "Jam operasional 09.00-18.00.", Intent: conversation.IntentFAQ}}
	sender := &stubSender{}
	handler := NewWebhookHandler(proc, sender, "topsecret", nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(inboundEvent("jam buka toko?")))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, conversation.ChannelWhatsApp, proc.last.Channel)
	assert.Equal(t, "628111222333", proc.last.SenderID)
	assert.Equal(t, "jam buka toko?", proc.last.Text)
	assert.Equal(t, "wamid.abc", proc.last.CorrelationID)
	assert.Equal(t, "628111222333", sender.to)
	assert.Equal(t, "Jam operasional 09.00-18.00.", sender.body)
}

func TestHandleInboundSenderFallsBackToFrom(t *testing.T) {
	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"messages": [{
						"from": "628999888777",
						"id": "wamid.xyz",
						"type": "text",
						"text": {"body": "halo"}
					}]
				}
			}]
		}]
	}`
	proc := &stubProcessor{result: conversation.TurnResult{FinalText: "Halo!"}}
	handler := NewWebhookHandler(proc, &stubSender{}, "topsecret", nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "628999888777", proc.last.SenderID)
}

func TestHandleInboundIgnoresNonText(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"entry": [`},
		{"empty envelope", `{"object": "whatsapp_business_account", "entry": []}`},
		{
			"image message",
			`{"entry": [{"changes": [{"value": {"messages": [{"from": "628", "type": "image"}]}}]}]}`,
		},
		{
			"text message with empty body",
			`{"entry": [{"changes": [{"value": {"messages": [{"from": "628", "type": "text", "text": {"body": ""}}]}}]}]}`,
		},
		{"status callback", `{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.1"}]}}]}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			proc := &stubProcessor{}
			sender := &stubSender{}
			handler := NewWebhookHandler(proc, sender, "topsecret", nil, logging.New("error"))

			req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			handler.HandleInbound(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Zero(t, proc.calls)
			assert.Zero(t, sender.calls)

			var out map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, "ignored", out["status"])
		})
	}
}

func TestHandleInboundPipelineFailure(t *testing.T) {
	proc := &stubProcessor{err: fmt.Errorf("session store down")}
	sender := &stubSender{}
	handler := NewWebhookHandler(proc, sender, "topsecret", nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(inboundEvent("jam buka?")))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, sender.calls)
}

func TestHandleInboundDeliveryFailure(t *testing.T) {
	proc := &stubProcessor{result: conversation.TurnResult{FinalText: "jawaban"}}
	sender := &stubSender{err: fmt.Errorf("graph api 500")}
	handler := NewWebhookHandler(proc, sender, "topsecret", nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(inboundEvent("jam buka?")))
	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, sender.calls)
}
