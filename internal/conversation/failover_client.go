package conversation

import (
	"context"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

// FailoverClient chains a backup LLM provider behind the primary one for the
// direct generation path. A turn only fails when both providers fail; the
// routed answer otherwise looks identical regardless of which provider
// produced it.
type FailoverClient struct {
	primary LLMClient
	backup  LLMClient
	logger  *logging.Logger
}

// NewFailoverClient wraps primary with backup. A nil backup leaves the
// primary on its own.
func NewFailoverClient(primary, backup LLMClient, logger *logging.Logger) *FailoverClient {
	if primary == nil {
		panic("conversation: primary LLM client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverClient{primary: primary, backup: backup, logger: logger}
}

// Complete tries the primary provider and falls over to the backup on any
// error. The primary's error is returned when no backup is configured.
func (c *FailoverClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	if primaryErr == nil {
		return resp, nil
	}
	if c.backup == nil {
		return LLMResponse{}, primaryErr
	}

	c.logger.Warn("primary LLM failed, trying backup provider", "error", primaryErr.Error())

	resp, backupErr := c.backup.Complete(ctx, req)
	if backupErr != nil {
		c.logger.Error("backup LLM failed too", "primary_error", primaryErr.Error(), "backup_error", backupErr.Error())
		return LLMResponse{}, backupErr
	}

	c.logger.Info("backup LLM answered after primary failure")
	return resp, nil
}
