// Package bootstrap wires pipeline dependencies from configuration so the
// API server and the follow-up worker assemble them the same way.
package bootstrap

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/urbanstyle/supportbot/internal/config"
	"github.com/urbanstyle/supportbot/internal/conversation"
	"github.com/urbanstyle/supportbot/internal/notify"
	"github.com/urbanstyle/supportbot/internal/session"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// BuildSessionStore selects the session backend from configuration.
func BuildSessionStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) session.Store {
	if cfg.SessionBackend == "redis" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return session.NewRedisStore(redis.NewClient(opts), cfg.SessionTTL)
	}
	return session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionTable, cfg.SessionTTL, logger)
}

// BuildGenerator assembles the generation stack: Bedrock Converse with an
// optional Gemini fallback, retrieval context from either the embedding
// index or the inline corpus, and the knowledge-base path when configured.
func BuildGenerator(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *conversation.Generator {
	bedrockClient := bedrockruntime.NewFromConfig(awsCfg)

	var llm conversation.LLMClient = conversation.NewBedrockLLMClient(bedrockClient).
		WithGuardrail(cfg.BedrockGuardrailID, cfg.BedrockGuardrailVer)
	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			llm = conversation.NewFailoverClient(llm, gemini, logger)
		}
	}

	var retriever conversation.Retriever
	var corpus *conversation.FallbackCorpus
	if cfg.BedrockEmbeddingModelID != "" {
		index := conversation.NewMemoryVectorIndex(
			conversation.NewBedrockEmbeddingClient(bedrockClient),
			cfg.BedrockEmbeddingModelID,
			cfg.RetrievalTopK,
			cfg.RetrievalScoreThreshold,
			logger,
		)
		seedVectorIndex(ctx, cfg, index, logger)
		retriever = index
	} else {
		corpus = LoadCorpus(cfg, logger)
	}

	composer := conversation.NewComposer(retriever, corpus, logger)
	generator := conversation.NewGenerator(llm, composer, cfg.BedrockModelID, logger)

	if cfg.KnowledgeBaseID != "" {
		kb := conversation.NewKnowledgeBaseClient(
			bedrockagentruntime.NewFromConfig(awsCfg),
			cfg.AWSRegion,
			cfg.BedrockModelID,
			cfg.KnowledgeBaseID,
			logger,
		).WithGuardrail(cfg.BedrockGuardrailID, cfg.BedrockGuardrailVer)
		generator = generator.WithKnowledgeBase(kb)
	}
	return generator
}

// LoadCorpus returns the configured corpus file or the built-in entries.
func LoadCorpus(cfg *appconfig.Config, logger *logging.Logger) *conversation.FallbackCorpus {
	if cfg.FallbackCorpusPath == "" {
		return conversation.NewFallbackCorpus()
	}
	corpus, err := conversation.LoadFallbackCorpus(cfg.FallbackCorpusPath)
	if err != nil {
		logger.Warn("failed to load fallback corpus, using built-in entries", "error", err, "path", cfg.FallbackCorpusPath)
		return conversation.NewFallbackCorpus()
	}
	return corpus
}

func seedVectorIndex(ctx context.Context, cfg *appconfig.Config, index *conversation.MemoryVectorIndex, logger *logging.Logger) {
	corpus := LoadCorpus(cfg, logger)
	seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := index.AddDocuments(seedCtx, corpus.Entries()); err != nil {
		logger.Warn("failed to seed vector index", "error", err)
	}
}

// BuildEscalationNotifier wires operator email notification, or nil when
// not configured. A SendGrid API key selects SendGrid as the email backend;
// SES is the default.
func BuildEscalationNotifier(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) conversation.EscalationNotifier {
	if cfg.EscalationEmailTo == "" || cfg.NotifyFromEmail == "" {
		return nil
	}

	var sender notify.EmailSender
	if cfg.SendGridAPIKey != "" {
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); sg != nil {
			sender = sg
		}
	} else {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); ses != nil {
			sender = ses
		}
	}
	if sender == nil {
		return nil
	}

	return notify.NewService(sender, notify.ServiceConfig{
		OperatorEmail: cfg.EscalationEmailTo,
		ProjectName:   cfg.NotifyFromName,
	}, logger)
}
