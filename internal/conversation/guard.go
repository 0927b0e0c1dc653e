package conversation

import "strings"

// LowConfidenceThreshold is the minimum blended confidence required to send
// a generated answer without escalating.
const LowConfidenceThreshold = 0.45

// LowConfidenceReply replaces answers the pipeline is not confident in.
const LowConfidenceReply = "Maaf, saya belum yakin dapat menjawab pertanyaan Anda dengan tepat. " +
	"Saya akan meneruskan ini ke tim layanan pelanggan kami."

// DenylistReply replaces answers that touch a denylisted term.
const DenylistReply = "Maaf, saya tidak dapat membagikan informasi tersebut. " +
	"Tim kami siap membantu secara langsung bila diperlukan."

// GuardResult is the outcome of the safety guardrail. It is always fully
// populated; there is no partial result.
type GuardResult struct {
	FinalText string
	Escalate  bool
}

// ApplyGuard filters a candidate reply. Empty text and low confidence swap in
// the low-confidence fallback; a denylist hit overrides both with the denylist
// fallback. ApplyGuard is total and order matters: the denylist check runs on
// the possibly already substituted text.
func ApplyGuard(answerText string, confidence float64, denylist []string) GuardResult {
	finalText := strings.TrimSpace(answerText)

	if finalText == "" {
		return GuardResult{FinalText: LowConfidenceReply, Escalate: true}
	}

	escalate := false
	if confidence < LowConfidenceThreshold {
		escalate = true
		finalText = LowConfidenceReply
	}

	if containsDenylisted(finalText, denylist) {
		escalate = true
		finalText = DenylistReply
	}

	return GuardResult{FinalText: finalText, Escalate: escalate}
}

func containsDenylisted(text string, denylist []string) bool {
	if len(denylist) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, term := range denylist {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
