package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingSetting indicates a required setting is absent or self-contradictory.
// Configuration errors are fatal at startup.
var ErrMissingSetting = errors.New("config: required setting missing")

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Form-encoded (Twilio WhatsApp) channel
	TwilioAccountSID          string
	TwilioAuthToken           string
	TwilioMessagingServiceSID string
	TwilioWhatsAppFrom        string
	TwilioValidateSignature   bool

	// JSON (WhatsApp Cloud) channel
	WhatsAppGraphBase     string
	WhatsAppGraphVersion  string
	WhatsAppPhoneNumberID string
	WhatsAppSecretName    string
	WhatsAppAccessToken   string
	WhatsAppVerifyToken   string

	// Interactive-command (Discord) channel
	DiscordPublicKey         string
	DiscordAppID             string
	DiscordValidateSignature bool
	FollowupQueueURL         string

	// Generation
	BedrockModelID          string
	BedrockEmbeddingModelID string
	KnowledgeBaseID         string
	BedrockGuardrailID      string
	BedrockGuardrailVer     string
	GeminiAPIKey            string
	GeminiModelID           string

	// Retrieval
	RetrievalTopK           int
	RetrievalScoreThreshold float64
	FallbackCorpusPath      string

	// Guardrail
	DenylistTerms []string

	// Sessions
	SessionBackend string
	SessionTable   string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// Escalation notifications. SES is the default backend; a SendGrid API
	// key switches the sender to SendGrid.
	EscalationEmailTo string
	SendGridAPIKey    string
	NotifyFromEmail   string
	NotifyFromName    string

	// Outbound delivery retry
	DeliveryRetryBaseDelay   time.Duration
	DeliveryRetryMaxAttempts int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAccountSID:          getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:           getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioMessagingServiceSID: getEnv("TWILIO_MESSAGING_SERVICE_SID", ""),
		TwilioWhatsAppFrom:        getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioValidateSignature:   getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", true),

		WhatsAppGraphBase:     getEnv("WHATSAPP_GRAPH_BASE", "https://graph.facebook.com"),
		WhatsAppGraphVersion:  getEnv("WHATSAPP_GRAPH_VERSION", "v20.0"),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppSecretName:    getEnv("WHATSAPP_SECRET_NAME", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppVerifyToken:   getEnv("VERIFY_TOKEN", ""),

		DiscordPublicKey:         getEnv("DISCORD_PUBLIC_KEY", ""),
		DiscordAppID:             getEnv("DISCORD_APP_ID", ""),
		DiscordValidateSignature: getEnvAsBool("DISCORD_VALIDATE_SIGNATURE", true),
		FollowupQueueURL:         getEnv("FOLLOWUP_QUEUE_URL", ""),

		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockEmbeddingModelID: getEnv("BEDROCK_EMBEDDING_MODEL_ID", ""),
		KnowledgeBaseID:         getEnv("KNOWLEDGE_BASE_ID", ""),
		BedrockGuardrailID:      getEnv("BEDROCK_GUARDRAIL_ID", ""),
		BedrockGuardrailVer:     getEnv("BEDROCK_GUARDRAIL_VER", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:           getEnv("GEMINI_MODEL_ID", ""),

		RetrievalTopK:           getEnvAsInt("RETRIEVAL_TOP_K", 3),
		RetrievalScoreThreshold: getEnvAsFloat("RETRIEVAL_SCORE_THRESHOLD", 0.5),
		FallbackCorpusPath:      getEnv("FALLBACK_CORPUS_PATH", ""),

		DenylistTerms: splitList(getEnv("DENYLIST_TERMS", "nomor kartu,password,otp,pin")),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "dynamodb"))),
		SessionTable:   getEnv("DDB_TABLE", ""),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 72*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		EscalationEmailTo: getEnv("ESCALATION_EMAIL_TO", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		NotifyFromEmail:   getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:    getEnv("NOTIFY_FROM_NAME", "UrbanStyle Support"),

		DeliveryRetryBaseDelay:   getEnvAsDuration("DELIVERY_RETRY_BASE_DELAY", 500*time.Millisecond),
		DeliveryRetryMaxAttempts: getEnvAsInt("DELIVERY_RETRY_MAX_ATTEMPTS", 3),
	}
}

// Validate checks the invariants that must hold before the service starts.
// Violations are configuration errors and abort startup.
func (c *Config) Validate() error {
	if c.BedrockModelID == "" {
		return fmt.Errorf("%w: BEDROCK_MODEL_ID", ErrMissingSetting)
	}
	if c.SessionBackend == "dynamodb" && c.SessionTable == "" {
		return fmt.Errorf("%w: DDB_TABLE", ErrMissingSetting)
	}
	if c.SessionBackend != "dynamodb" && c.SessionBackend != "redis" {
		return fmt.Errorf("%w: SESSION_BACKEND must be dynamodb or redis, got %q", ErrMissingSetting, c.SessionBackend)
	}
	// The form-encoded channel cannot address outbound messages without one of these.
	if c.TwilioAccountSID != "" && c.TwilioMessagingServiceSID == "" && c.TwilioWhatsAppFrom == "" {
		return fmt.Errorf("%w: set TWILIO_MESSAGING_SERVICE_SID or TWILIO_WHATSAPP_FROM", ErrMissingSetting)
	}
	if c.TwilioWhatsAppFrom != "" && !strings.HasPrefix(c.TwilioWhatsAppFrom, "whatsapp:") {
		return fmt.Errorf("%w: TWILIO_WHATSAPP_FROM must look like 'whatsapp:+1...'", ErrMissingSetting)
	}
	if c.KnowledgeBaseID != "" && c.BedrockModelID == "" {
		return fmt.Errorf("%w: KNOWLEDGE_BASE_ID requires BEDROCK_MODEL_ID", ErrMissingSetting)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
