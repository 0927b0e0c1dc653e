package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	whatsAppAccessTokenKey = "WHATSAPP_ACCESS_TOKEN"
	whatsAppVerifyTokenKey = "VERIFY_TOKEN"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// WhatsAppSecrets holds the Graph API credentials for the JSON channel.
type WhatsAppSecrets struct {
	AccessToken string
	VerifyToken string
}

// LoadWhatsAppSecrets resolves the WhatsApp Graph credentials. Environment
// overrides take precedence (useful for local development); otherwise the
// named Secrets Manager secret is fetched and must contain both keys.
func LoadWhatsAppSecrets(ctx context.Context, cfg *Config, client secretsAPI) (WhatsAppSecrets, error) {
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppVerifyToken != "" {
		return WhatsAppSecrets{
			AccessToken: cfg.WhatsAppAccessToken,
			VerifyToken: cfg.WhatsAppVerifyToken,
		}, nil
	}

	if cfg.WhatsAppSecretName == "" {
		return WhatsAppSecrets{}, fmt.Errorf("%w: WHATSAPP_SECRET_NAME (or WHATSAPP_ACCESS_TOKEN + VERIFY_TOKEN)", ErrMissingSetting)
	}
	if client == nil {
		return WhatsAppSecrets{}, fmt.Errorf("config: secrets manager client not configured")
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.WhatsAppSecretName),
	})
	if err != nil {
		return WhatsAppSecrets{}, fmt.Errorf("config: failed to fetch whatsapp secret: %w", err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return WhatsAppSecrets{}, fmt.Errorf("config: whatsapp secret is empty")
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return WhatsAppSecrets{}, fmt.Errorf("config: whatsapp secret is not valid JSON: %w", err)
	}

	secrets := WhatsAppSecrets{
		AccessToken: payload[whatsAppAccessTokenKey],
		VerifyToken: payload[whatsAppVerifyTokenKey],
	}
	if secrets.AccessToken == "" || secrets.VerifyToken == "" {
		return WhatsAppSecrets{}, fmt.Errorf("config: whatsapp secret missing %s or %s", whatsAppAccessTokenKey, whatsAppVerifyTokenKey)
	}
	return secrets, nil
}
