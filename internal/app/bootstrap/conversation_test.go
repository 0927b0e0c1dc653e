package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/urbanstyle/supportbot/internal/config"
	"github.com/urbanstyle/supportbot/internal/session"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

func TestLoadCorpusFallsBackToBuiltIn(t *testing.T) {
	cfg := &appconfig.Config{}
	corpus := LoadCorpus(cfg, logging.New("error"))
	if corpus.Len() == 0 {
		t.Fatal("expected built-in corpus entries")
	}

	cfg.FallbackCorpusPath = "/nonexistent/faq.md"
	corpus = LoadCorpus(cfg, logging.New("error"))
	if corpus.Len() == 0 {
		t.Fatal("expected built-in corpus when file is missing")
	}
}

func TestLoadCorpusReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.md")
	if err := os.WriteFile(path, []byte("Jam buka 09.00.\n\nAlamat toko di Jakarta."), 0o600); err != nil {
		t.Fatal(err)
	}

	corpus := LoadCorpus(&appconfig.Config{FallbackCorpusPath: path}, logging.New("error"))
	if corpus.Len() != 2 {
		t.Fatalf("corpus Len() = %d, want 2", corpus.Len())
	}
}

func TestBuildSessionStoreSelectsRedis(t *testing.T) {
	cfg := &appconfig.Config{
		SessionBackend: "redis",
		RedisAddr:      "127.0.0.1:6379",
		SessionTTL:     72 * time.Hour,
	}

	store := BuildSessionStore(cfg, aws.Config{}, logging.New("error"))
	if _, ok := store.(*session.RedisStore); !ok {
		t.Fatalf("store = %T, want *session.RedisStore", store)
	}
}

func TestBuildEscalationNotifierRequiresAddresses(t *testing.T) {
	if n := BuildEscalationNotifier(&appconfig.Config{}, aws.Config{}, logging.New("error")); n != nil {
		t.Fatalf("expected nil notifier without operator email, got %T", n)
	}
}

func TestBuildEscalationNotifierSelectsSendGrid(t *testing.T) {
	cfg := &appconfig.Config{
		EscalationEmailTo: "ops@urbanstyle.example",
		NotifyFromEmail:   "bot@urbanstyle.example",
		SendGridAPIKey:    "SG.test-key",
	}

	if n := BuildEscalationNotifier(cfg, aws.Config{}, logging.New("error")); n == nil {
		t.Fatal("expected a notifier when SendGrid is configured")
	}
}
