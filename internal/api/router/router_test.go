package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/webchat"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

type stubProcessor struct {
	result conversation.TurnResult
}

func (s *stubProcessor) ProcessTurn(_ context.Context, _ conversation.InboundMessage) (conversation.TurnResult, error) {
	return s.result, nil
}

func newTestRouter() http.Handler {
	return New(&Config{
		Logger:  logging.New("error"),
		WebChat: webchat.NewHandler(&stubProcessor{result: conversation.TurnResult{FinalText: "ok"}}, logging.New("error")),
	})
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMethodNotAllowedIsPlainText(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/chat", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "Method Not Allowed", rec.Body.String())
}

func TestUnconfiguredWebhooksAreAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatRouteWired(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text": "halo"}`))
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer":"ok"`)
}

func TestChatRateLimitRejectsBursts(t *testing.T) {
	r := New(&Config{
		Logger:        logging.New("error"),
		WebChat:       webchat.NewHandler(&stubProcessor{}, logging.New("error")),
		ChatRateLimit: 1,
		ChatRateBurst: 1,
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text": "halo"}`)))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text": "halo"}`)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := New(&Config{
		Logger:             logging.New("error"),
		WebChat:            webchat.NewHandler(&stubProcessor{}, logging.New("error")),
		CORSAllowedOrigins: []string{"https://tester.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://tester.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://tester.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
