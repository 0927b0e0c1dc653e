package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	batypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/urbanstyle/supportbot/pkg/logging"
)

// RetrievalPlaceholder must appear in every prompt template sent to the
// retrieve-and-generate API; the service substitutes the retrieved passages
// for it. Requests without it are rejected by the service.
const RetrievalPlaceholder = "$search_results$"

// ragDefaultConfidence is assigned when the augmented path produced text but
// none of its citations carried a score.
const ragDefaultConfidence = 0.75

const kbRetrievalResults = 4

type bedrockRAGAPI interface {
	RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// KnowledgeBaseClient answers questions through a Bedrock knowledge base,
// grounding the model on retrieved passages in a single call.
type KnowledgeBaseClient struct {
	api              bedrockRAGAPI
	knowledgeBaseID  string
	modelArn         string
	guardrailID      string
	guardrailVersion string
	logger           *logging.Logger
}

// NewKnowledgeBaseClient builds an augmented-generation client. The model is
// addressed by its foundation-model ARN, derived from region and model id.
func NewKnowledgeBaseClient(api bedrockRAGAPI, region, modelID, knowledgeBaseID string, logger *logging.Logger) *KnowledgeBaseClient {
	if api == nil {
		panic("conversation: bedrock agent runtime client cannot be nil")
	}
	if knowledgeBaseID == "" {
		panic("conversation: knowledge base id cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &KnowledgeBaseClient{
		api:             api,
		knowledgeBaseID: knowledgeBaseID,
		modelArn:        fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", region, modelID),
		logger:          logger,
	}
}

// WithGuardrail attaches a managed guardrail to every request.
func (c *KnowledgeBaseClient) WithGuardrail(id, version string) *KnowledgeBaseClient {
	c.guardrailID = id
	c.guardrailVersion = version
	return c
}

// Generate asks the knowledge base to answer the question, rendering the
// final prompt from promptTemplate. The template must contain
// RetrievalPlaceholder; Generate refuses to send one without it rather than
// letting the service reject the whole request.
func (c *KnowledgeBaseClient) Generate(ctx context.Context, question, promptTemplate string) (GeneratedAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return GeneratedAnswer{}, errors.New("conversation: question cannot be empty")
	}
	if !strings.Contains(promptTemplate, RetrievalPlaceholder) {
		return GeneratedAnswer{}, fmt.Errorf("conversation: prompt template must contain %s", RetrievalPlaceholder)
	}

	kbConfig := &batypes.KnowledgeBaseRetrieveAndGenerateConfiguration{
		KnowledgeBaseId: aws.String(c.knowledgeBaseID),
		ModelArn:        aws.String(c.modelArn),
		RetrievalConfiguration: &batypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &batypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(kbRetrievalResults),
			},
		},
		GenerationConfiguration: &batypes.GenerationConfiguration{
			PromptTemplate: &batypes.PromptTemplate{
				TextPromptTemplate: aws.String(promptTemplate),
			},
		},
	}
	if c.guardrailID != "" && c.guardrailVersion != "" {
		kbConfig.GenerationConfiguration.GuardrailConfiguration = &batypes.GuardrailConfiguration{
			GuardrailId:      aws.String(c.guardrailID),
			GuardrailVersion: aws.String(c.guardrailVersion),
		}
	}

	out, err := c.api.RetrieveAndGenerate(ctx, &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &batypes.RetrieveAndGenerateInput{Text: aws.String(question)},
		RetrieveAndGenerateConfiguration: &batypes.RetrieveAndGenerateConfiguration{
			Type:                       batypes.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: kbConfig,
		},
	})
	if err != nil {
		c.logger.Error("retrieve and generate failed", "error", err, "knowledge_base_id", c.knowledgeBaseID)
		return GeneratedAnswer{}, fmt.Errorf("conversation: retrieve and generate: %w", err)
	}

	answer := GeneratedAnswer{}
	if out.Output != nil {
		answer.Answer = strings.TrimSpace(aws.ToString(out.Output.Text))
	}
	answer.Citations = citationsFromReferences(out.Citations)

	highest := 0.0
	for _, cit := range answer.Citations {
		if cit.Score > highest {
			highest = cit.Score
		}
	}
	switch {
	case highest > 0:
		answer.Confidence = highest
	case answer.Answer != "":
		answer.Confidence = ragDefaultConfidence
	default:
		answer.Confidence = 0
	}
	return answer, nil
}

func citationsFromReferences(citations []batypes.Citation) []Citation {
	var out []Citation
	for _, cit := range citations {
		for _, ref := range cit.RetrievedReferences {
			record := Citation{}
			if ref.Content != nil {
				record.Text = aws.ToString(ref.Content.Text)
			}
			if ref.Location != nil && ref.Location.S3Location != nil {
				record.URI = aws.ToString(ref.Location.S3Location.Uri)
			}
			if doc, ok := ref.Metadata["score"]; ok && doc != nil {
				var score float64
				if err := doc.UnmarshalSmithyDocument(&score); err == nil {
					record.Score = score
				}
			}
			out = append(out, record)
		}
	}
	return out
}
