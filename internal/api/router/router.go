package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/urbanstyle/supportbot/internal/channels/discord"
	"github.com/urbanstyle/supportbot/internal/channels/twilio"
	"github.com/urbanstyle/supportbot/internal/channels/whatsapp"
	httpmiddleware "github.com/urbanstyle/supportbot/internal/http/middleware"
	"github.com/urbanstyle/supportbot/internal/webchat"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	TwilioWebhook   *twilio.WebhookHandler
	WhatsAppWebhook *whatsapp.WebhookHandler
	DiscordWebhook  *discord.WebhookHandler
	WebChat         *webchat.Handler
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string

	// ChatRateLimit caps requests/sec per IP on the public chat surface.
	// Zero disables limiting.
	ChatRateLimit float64
	ChatRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method Not Allowed"))
	})

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Channel webhooks
	if cfg.TwilioWebhook != nil {
		r.Post("/webhooks/twilio", cfg.TwilioWebhook.HandleInbound)
	}
	if cfg.WhatsAppWebhook != nil {
		r.Get("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleVerification)
		r.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
	}
	if cfg.DiscordWebhook != nil {
		r.Post("/webhooks/discord", cfg.DiscordWebhook.HandleInteraction)
	}

	// Web chat test surface
	if cfg.WebChat != nil {
		r.Group(func(chat chi.Router) {
			if cfg.ChatRateLimit > 0 {
				chat.Use(httpmiddleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst))
			}
			chat.Post("/chat", cfg.WebChat.HandleChat)
			chat.Get("/ui", cfg.WebChat.HandleUI)
			chat.Handle("/ws", cfg.WebChat.Socket())
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
