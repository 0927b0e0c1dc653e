package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/urbanstyle/supportbot/internal/session"
	"github.com/urbanstyle/supportbot/pkg/logging"
)

// systemPrompt frames every generation call. Indonesian because the support
// line serves Indonesian customers.
const systemPrompt = "Anda adalah asisten layanan pelanggan resmi. " +
	"Jawab ringkas, berbasis fakta, Bahasa Indonesia, sertakan sumber internal jika ada. " +
	"Jika tidak yakin, nyatakan ketidakpastian dan sarankan bantuan manusia. " +
	"Jangan berhalusinasi atau membuat kebijakan baru."

const (
	generationMaxTokens   = 400
	generationTemperature = 0.2
	generationTopP        = 0.9

	directConfidenceEndTurn   = 0.70
	directConfidenceTruncated = 0.65
)

// ragGenerator is the augmented-generation collaborator contract,
// implemented by KnowledgeBaseClient.
type ragGenerator interface {
	Generate(ctx context.Context, question, promptTemplate string) (GeneratedAnswer, error)
}

// Generator routes a question to either the direct or the knowledge-base
// augmented generation path and normalizes the result.
type Generator struct {
	llm      LLMClient
	kb       ragGenerator
	composer *Composer
	modelID  string
	logger   *logging.Logger
}

// NewGenerator builds a direct-path generator. Attach the augmented path
// with WithKnowledgeBase when a knowledge base is configured.
func NewGenerator(llm LLMClient, composer *Composer, modelID string, logger *logging.Logger) *Generator {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if composer == nil {
		panic("conversation: composer cannot be nil")
	}
	if modelID == "" {
		panic("conversation: model id cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		llm:      llm,
		composer: composer,
		modelID:  modelID,
		logger:   logger,
	}
}

// WithKnowledgeBase switches generation to the augmented path.
func (g *Generator) WithKnowledgeBase(kb ragGenerator) *Generator {
	g.kb = kb
	return g
}

// Generate answers the question with whatever context the composer finds.
func (g *Generator) Generate(ctx context.Context, question string, sess *session.State) (GeneratedAnswer, error) {
	bundle := g.composer.Compose(ctx, question, sess)

	if g.kb != nil {
		return g.kb.Generate(ctx, question, ragPromptTemplate(question, bundle))
	}
	return g.generateDirect(ctx, question, bundle)
}

func (g *Generator) generateDirect(ctx context.Context, question string, bundle ContextBundle) (GeneratedAnswer, error) {
	resp, err := g.llm.Complete(ctx, LLMRequest{
		Model:       g.modelID,
		System:      []string{systemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: directPrompt(question, bundle)}},
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
		TopP:        generationTopP,
	})
	if err != nil {
		return GeneratedAnswer{}, fmt.Errorf("conversation: direct generation: %w", err)
	}

	confidence := directConfidenceTruncated
	if resp.StopReason == StopReasonEndTurn {
		confidence = directConfidenceEndTurn
	}
	return GeneratedAnswer{Answer: resp.Text, Confidence: confidence}, nil
}

func directPrompt(question string, bundle ContextBundle) string {
	lines := []string{fmt.Sprintf("Sesi: %s", bundle.Summary())}
	if knowledge := bundle.Knowledge(); knowledge != "" {
		lines = append(lines, fmt.Sprintf("Konten relevan:\n%s", knowledge))
	}
	lines = append(lines,
		fmt.Sprintf("Pengguna: %s", question),
		"Jawab dalam paragraf singkat, gunakan Bahasa Indonesia.",
	)
	return strings.Join(lines, "\n\n")
}

// ragPromptTemplate renders the retrieve-and-generate prompt template. The
// retrieval placeholder is mandatory: the service substitutes the retrieved
// passages for it and rejects templates that omit it.
func ragPromptTemplate(question string, bundle ContextBundle) string {
	lines := []string{fmt.Sprintf("Sesi: %s", bundle.Summary())}
	if knowledge := bundle.Knowledge(); knowledge != "" {
		lines = append(lines, fmt.Sprintf("Konten relevan:\n%s", knowledge))
	}
	lines = append(lines,
		fmt.Sprintf("Hasil pencarian:\n%s", RetrievalPlaceholder),
		fmt.Sprintf("Pengguna: %s", question),
		"Jawab dalam paragraf singkat, gunakan Bahasa Indonesia.",
	)
	return strings.Join(lines, "\n\n")
}
