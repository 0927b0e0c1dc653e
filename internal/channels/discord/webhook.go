// Package discord adapts Discord slash-command interactions to the
// conversation pipeline. Interactions are answered in two phases: the
// webhook acknowledges with a deferred response inside Discord's deadline,
// and a queue worker posts the real answer afterwards.
package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/observability/metrics"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const (
	unsupportedInteractionReply = "Unsupported interaction."
	unknownCommandReply         = "Gunakan perintah /chat."
	missingQuestionReply        = "Masukkan pertanyaan setelah /chat."
)

var questionOptionNames = []string{"q", "prompt", "text", "pesan"}

// FollowupPublisher schedules the deferred second phase of an interaction.
type FollowupPublisher interface {
	EnqueueFollowup(ctx context.Context, task conversation.DeferredTask) error
}

// WebhookHandler terminates the Discord interactions endpoint.
type WebhookHandler struct {
	publisher         FollowupPublisher
	applicationID     string
	publicKey         ed25519.PublicKey
	validateSignature bool
	metrics           *metrics.PipelineMetrics
	logger            *logging.Logger
}

// NewWebhookHandler builds the interactions handler. The public key is the
// hex-encoded Ed25519 verification key from the application settings.
// validateSignature should only be false in local harnesses; Discord rejects
// endpoints that skip it.
func NewWebhookHandler(publisher FollowupPublisher, applicationID, publicKeyHex string, validateSignature bool, m *metrics.PipelineMetrics, logger *logging.Logger) *WebhookHandler {
	if publisher == nil {
		panic("discord: publisher cannot be nil")
	}
	key, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(key) != ed25519.PublicKeySize {
		panic(fmt.Sprintf("discord: invalid interactions public key: %v", err))
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		publisher:         publisher,
		applicationID:     applicationID,
		publicKey:         ed25519.PublicKey(key),
		validateSignature: validateSignature,
		metrics:           m,
		logger:            logger,
	}
}

// HandleInteraction processes one interactions POST. Every accepted slash
// command is acknowledged with a deferred response; the answer itself is
// produced by the follow-up worker.
func (h *WebhookHandler) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	if h.validateSignature && !discordgo.VerifyInteraction(r, h.publicKey) {
		h.metrics.ObserveInbound("discord", "auth_denied")
		http.Error(w, "invalid request signature", http.StatusUnauthorized)
		return
	}

	var interaction discordgo.Interaction
	if err := json.NewDecoder(r.Body).Decode(&interaction); err != nil {
		h.metrics.ObserveInbound("discord", "ignored")
		http.Error(w, "malformed interaction", http.StatusBadRequest)
		return
	}

	switch interaction.Type {
	case discordgo.InteractionPing:
		h.respond(w, &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
		return
	case discordgo.InteractionApplicationCommand:
	default:
		h.metrics.ObserveInbound("discord", "ignored")
		h.respondMessage(w, unsupportedInteractionReply)
		return
	}

	data := interaction.ApplicationCommandData()
	if name := strings.ToLower(data.Name); name != "chat" && name != "ask" {
		h.metrics.ObserveInbound("discord", "ignored")
		h.respondMessage(w, unknownCommandReply)
		return
	}

	question := questionFromOptions(data.Options)
	if question == "" {
		h.metrics.ObserveInbound("discord", "ignored")
		h.respondMessage(w, missingQuestionReply)
		return
	}

	task := conversation.DeferredTask{
		Question:      question,
		UserID:        interactionUserID(&interaction),
		ReplyToken:    interaction.Token,
		ApplicationID: h.interactionAppID(&interaction),
	}
	if err := h.publisher.EnqueueFollowup(r.Context(), task); err != nil {
		h.metrics.ObserveInbound("discord", "error")
		h.logger.Error("discord follow-up enqueue failed", "error", err, "user", logging.SenderHash(task.UserID))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound("discord", "ok")
	h.respond(w, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource})
}

func (h *WebhookHandler) respond(w http.ResponseWriter, resp *discordgo.InteractionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("discord response encode failed", "error", err)
	}
}

func (h *WebhookHandler) respondMessage(w http.ResponseWriter, content string) {
	h.respond(w, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func (h *WebhookHandler) interactionAppID(interaction *discordgo.Interaction) string {
	if interaction.AppID != "" {
		return interaction.AppID
	}
	return h.applicationID
}

// questionFromOptions accepts any of the known question option names so the
// command definition can evolve without breaking the handler.
func questionFromOptions(options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range options {
		if opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
			continue
		}
		name := strings.ToLower(opt.Name)
		for _, candidate := range questionOptionNames {
			if name == candidate {
				if value := strings.TrimSpace(opt.StringValue()); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

func interactionUserID(interaction *discordgo.Interaction) string {
	if interaction.Member != nil && interaction.Member.User != nil && interaction.Member.User.ID != "" {
		return interaction.Member.User.ID
	}
	if interaction.User != nil && interaction.User.ID != "" {
		return interaction.User.ID
	}
	return "anonymous"
}
