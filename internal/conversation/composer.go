package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/urbanstyle/supportbot/internal/session"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

const (
	defaultSnippetMaxLen = 400
	lastReplyExcerptLen  = 150
)

// Composer gathers context snippets for generation from up to three sources:
// vector-search matches, the static fallback corpus, and a summary of the
// sender's session. An empty bundle is a valid outcome, never an error.
type Composer struct {
	retriever     Retriever
	corpus        *FallbackCorpus
	snippetMaxLen int
	logger        *logging.Logger
}

// NewComposer builds a composer. retriever may be nil when no vector index
// is configured; the corpus then serves as the only knowledge source.
func NewComposer(retriever Retriever, corpus *FallbackCorpus, logger *logging.Logger) *Composer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Composer{
		retriever:     retriever,
		corpus:        corpus,
		snippetMaxLen: defaultSnippetMaxLen,
		logger:        logger,
	}
}

// Compose builds the context bundle for one question. Retrieval failures
// degrade to the remaining sources; they never fail the turn.
func (c *Composer) Compose(ctx context.Context, question string, sess *session.State) ContextBundle {
	var bundle ContextBundle

	if c.retriever != nil {
		matches, err := c.retriever.Search(ctx, question)
		if err != nil {
			c.logger.Warn("vector search failed, continuing without matches", "error", err)
		}
		for _, match := range matches {
			match.Text = truncateText(match.Text, c.snippetMaxLen)
			bundle = append(bundle, match)
		}
	} else if c.corpus != nil {
		bundle = append(bundle, c.corpus.Match(question, 3)...)
	}

	if summary := SessionSummary(sess); summary != "" {
		bundle = append(bundle, ContextSnippet{Source: "session", Text: summary})
	}

	return bundle
}

// SessionSummary renders the one-line session recap fed into prompts.
func SessionSummary(sess *session.State) string {
	if sess == nil {
		return "Riwayat sesi tidak tersedia."
	}

	var parts []string
	if sess.LastIntent != "" {
		parts = append(parts, fmt.Sprintf("Intent terakhir: %s.", sess.LastIntent))
	}
	if sess.LastReply != "" {
		parts = append(parts, fmt.Sprintf("Balasan terakhir: %s.", truncateText(sess.LastReply, lastReplyExcerptLen)))
	}
	if sess.Escalation {
		parts = append(parts, "Status eskalasi: true.")
	}
	if len(parts) == 0 {
		return "Riwayat sesi minim."
	}
	return strings.Join(parts, " ")
}

// Knowledge returns only the retrieved or corpus snippets of the bundle,
// numbered for prompt inclusion. Empty string when there are none.
func (b ContextBundle) Knowledge() string {
	var lines []string
	for _, snippet := range b {
		if snippet.Source == "session" {
			continue
		}
		line := fmt.Sprintf("%d. [%s] %s", len(lines)+1, snippet.Source, snippet.Text)
		if snippet.Scored {
			line = fmt.Sprintf("%s (skor %.2f)", line, snippet.Score)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Summary returns the session snippet of the bundle, if present.
func (b ContextBundle) Summary() string {
	for _, snippet := range b {
		if snippet.Source == "session" {
			return snippet.Text
		}
	}
	return ""
}

func truncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
