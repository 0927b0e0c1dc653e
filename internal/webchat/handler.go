// Package webchat exposes a browser-facing test surface for the pipeline: a
// JSON chat endpoint, a minimal HTML page, and a WebSocket variant for live
// poking. It carries no channel credentials and is meant for operators, not
// end users.
package webchat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const anonymousWebUser = "webtester"

// ChatRequest is the JSON chat payload. The q alias mirrors the slash
// command option so the same snippets work against both surfaces.
type ChatRequest struct {
	Text string `json:"text"`
	Q    string `json:"q"`
	User string `json:"user"`
}

// ChatResponse is the JSON chat reply.
type ChatResponse struct {
	Answer   string `json:"answer"`
	Intent   string `json:"intent"`
	Escalate bool   `json:"escalate"`
}

// Handler serves the web chat test endpoints.
type Handler struct {
	processor conversation.TurnProcessor
	logger    *logging.Logger
}

// NewHandler creates a web chat handler.
func NewHandler(processor conversation.TurnProcessor, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("webchat: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{processor: processor, logger: logger}
}

// HandleChat answers one JSON chat request synchronously.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.Q)
	}
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	userID := strings.TrimSpace(req.User)
	if userID == "" {
		userID = anonymousWebUser
	}

	result, err := h.processor.ProcessTurn(r.Context(), conversation.InboundMessage{
		Channel:  conversation.ChannelWebChat,
		SenderID: userID,
		Text:     text,
	})
	if errors.Is(err, conversation.ErrIgnored) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	if err != nil {
		h.logger.Error("webchat turn failed", "error", err, "user", logging.SenderHash(userID))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:   result.FinalText,
		Intent:   string(result.Intent),
		Escalate: result.Escalate,
	})
}

const chatTestPage = `<!doctype html><meta charset='utf-8'><title>Chat Test</title>
<style>body{font-family:sans-serif;max-width:680px;margin:40px auto;}textarea{width:100%;height:100px}pre{background:#111;color:#0f0;padding:12px;white-space:pre-wrap}</style>
<h2>Chat Test</h2><p>Ketik pesan dan kirim ke endpoint JSON.</p>
<textarea id=q placeholder='halo'></textarea><br><button onclick=send()>Kirim</button>
<pre id=o></pre>
<script>async function send(){const r=await fetch('./chat',{method:'POST',headers:{'Content-Type':'application/json'},body:JSON.stringify({text:document.getElementById('q').value})});document.getElementById('o').textContent=await r.text();}</script>
`

// HandleUI serves the single-page chat tester.
func (h *Handler) HandleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(chatTestPage))
}

// SocketMessage is one WebSocket frame in either direction.
type SocketMessage struct {
	Type     string `json:"type"` // "message" or "ping"
	Text     string `json:"text,omitempty"`
	User     string `json:"user,omitempty"`
	Intent   string `json:"intent,omitempty"`
	Escalate bool   `json:"escalate,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Socket returns the WebSocket handler for live chat.
func (h *Handler) Socket() http.Handler {
	return websocket.Handler(h.serveSocket)
}

func (h *Handler) serveSocket(conn *websocket.Conn) {
	defer conn.Close()
	ctx := conn.Request().Context()

	for {
		var in SocketMessage
		if err := websocket.JSON.Receive(conn, &in); err != nil {
			return
		}

		switch in.Type {
		case "ping":
			if err := websocket.JSON.Send(conn, SocketMessage{Type: "pong"}); err != nil {
				return
			}
			continue
		case "message":
		default:
			if err := websocket.JSON.Send(conn, SocketMessage{Type: "error", Error: "unknown message type"}); err != nil {
				return
			}
			continue
		}

		userID := strings.TrimSpace(in.User)
		if userID == "" {
			userID = anonymousWebUser
		}

		result, err := h.processor.ProcessTurn(ctx, conversation.InboundMessage{
			Channel:  conversation.ChannelWebChat,
			SenderID: userID,
			Text:     in.Text,
		})
		if errors.Is(err, conversation.ErrIgnored) {
			if err := websocket.JSON.Send(conn, SocketMessage{Type: "error", Error: "text is required"}); err != nil {
				return
			}
			continue
		}
		if err != nil {
			h.logger.Error("webchat socket turn failed", "error", err, "user", logging.SenderHash(userID))
			if err := websocket.JSON.Send(conn, SocketMessage{Type: "error", Error: "internal error"}); err != nil {
				return
			}
			continue
		}

		out := SocketMessage{
			Type:     "message",
			Text:     result.FinalText,
			Intent:   string(result.Intent),
			Escalate: result.Escalate,
		}
		if err := websocket.JSON.Send(conn, out); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
