package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	resp  LLMResponse
	err   error
	calls int
}

func (s *scriptedLLM) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestFailoverClientPrefersPrimary(t *testing.T) {
	primary := &scriptedLLM{resp: LLMResponse{Text: "dari bedrock"}}
	backup := &scriptedLLM{resp: LLMResponse{Text: "dari gemini"}}
	client := NewFailoverClient(primary, backup, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "dari bedrock", resp.Text)
	assert.Zero(t, backup.calls, "backup must stay idle while the primary works")
}

func TestFailoverClientFallsOverOnPrimaryError(t *testing.T) {
	primary := &scriptedLLM{err: errors.New("bedrock throttled")}
	backup := &scriptedLLM{resp: LLMResponse{Text: "dari gemini"}}
	client := NewFailoverClient(primary, backup, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "dari gemini", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestFailoverClientWithoutBackupReturnsPrimaryError(t *testing.T) {
	primaryErr := errors.New("bedrock throttled")
	client := NewFailoverClient(&scriptedLLM{err: primaryErr}, nil, nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, primaryErr)
}

func TestFailoverClientSurfacesBackupError(t *testing.T) {
	backupErr := errors.New("gemini quota")
	client := NewFailoverClient(&scriptedLLM{err: errors.New("bedrock down")}, &scriptedLLM{err: backupErr}, nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, backupErr)
}
