package conversation

// Channel identifies the messaging channel a message arrived on.
type Channel string

const (
	ChannelTwilio   Channel = "twilio"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelDiscord  Channel = "discord"
	ChannelWebChat  Channel = "webchat"
)

// InboundMessage is the canonical form every channel adapter converges on.
type InboundMessage struct {
	Channel       Channel
	SenderID      string
	Text          string
	MediaCount    int
	CorrelationID string
}

// Intent is the coarse category assigned by the classifier.
type Intent string

const (
	IntentOrderStatus Intent = "order_status"
	IntentFAQ         Intent = "faq"
	IntentOutOfScope  Intent = "out_of_scope"
)

// Classification pairs an intent with the classifier's confidence in it.
type Classification struct {
	Intent     Intent
	Confidence float64
}

// ContextSnippet is one labelled piece of retrieved or derived context.
type ContextSnippet struct {
	Source string
	Text   string
	Score  float64
	Scored bool
}

// ContextBundle is an ordered set of snippets fed into generation.
// An empty bundle is valid and means no augmentation.
type ContextBundle []ContextSnippet

// Citation is an opaque pass-through citation record from the augmented path.
type Citation struct {
	Text  string  `json:"text,omitempty"`
	URI   string  `json:"uri,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// GeneratedAnswer is the normalized output of either generation path.
type GeneratedAnswer struct {
	Answer     string
	Confidence float64
	Citations  []Citation
}

// TurnResult is the outcome of one full pipeline turn for one inbound message.
type TurnResult struct {
	FinalText  string
	Intent     Intent
	Confidence float64
	Escalate   bool
}

// DeferredTask carries an interactive-channel command across the Phase 1 to
// Phase 2 hop. It is created exactly once by the channel adapter and consumed
// exactly once by the follow-up worker; it never outlives that hop.
type DeferredTask struct {
	Question      string `json:"question"`
	UserID        string `json:"user_id"`
	ReplyToken    string `json:"reply_token"`
	ApplicationID string `json:"application_id"`
}
