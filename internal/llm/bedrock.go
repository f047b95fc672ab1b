package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/otel"

	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

var bedrockTracer = otel.Tracer("mediswift.internal.llm.bedrock")

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient is the dialogue service backed by AWS Bedrock's Converse API.
// It covers deployments that cannot send patient conversations to OpenAI;
// transcription still needs a separate provider.
type BedrockClient struct {
	api     bedrockConverseAPI
	modelID string
	logger  *logging.Logger
}

// NewBedrockClient builds the client around a Converse-capable API.
func NewBedrockClient(api bedrockConverseAPI, modelID string, logger *logging.Logger) *BedrockClient {
	if api == nil {
		panic("llm: bedrock converse client cannot be nil")
	}
	if modelID == "" {
		panic("llm: bedrock model id cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BedrockClient{api: api, modelID: modelID, logger: logger}
}

var _ conversation.DialogueClient = (*BedrockClient)(nil)

// Converse runs one chat turn over the full transcript.
func (c *BedrockClient) Converse(ctx context.Context, transcript []session.Turn, language string) (string, error) {
	ctx, span := bedrockTracer.Start(ctx, "llm.bedrock.converse")
	defer span.End()

	return c.converse(ctx, transcript, nil)
}

// Summarize runs the summarization turn. Bedrock has no schema-constrained
// output mode, so the instruction is reinforced with a JSON-only directive.
func (c *BedrockClient) Summarize(ctx context.Context, transcript []session.Turn) (string, error) {
	ctx, span := bedrockTracer.Start(ctx, "llm.bedrock.summarize")
	defer span.End()

	extra := []string{"Respond with a single valid JSON object and nothing else."}
	return c.converse(ctx, transcript, extra)
}

// ConvertSummaryToDisplay reshapes the structured summary for display.
func (c *BedrockClient) ConvertSummaryToDisplay(ctx context.Context, summary string) (string, error) {
	ctx, span := bedrockTracer.Start(ctx, "llm.bedrock.display_convert")
	defer span.End()

	transcript := []session.Turn{
		{Role: session.RoleSystem, Content: conversation.DisplayConversionInstruction},
		{Role: session.RoleUser, Content: summary},
	}
	extra := []string{"Respond with a single valid JSON object and nothing else."}
	return c.converse(ctx, transcript, extra)
}

func (c *BedrockClient) converse(ctx context.Context, transcript []session.Turn, extraSystem []string) (string, error) {
	systemBlocks := make([]brtypes.SystemContentBlock, 0, 2)
	messages := make([]brtypes.Message, 0, len(transcript))

	for _, turn := range transcript {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case session.RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case session.RoleUser:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		case session.RoleAssistant:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		default:
			return "", fmt.Errorf("llm: unsupported role %q", turn.Role)
		}
	}
	for _, block := range extraSystem {
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}
	if len(messages) == 0 {
		// Bedrock rejects empty message lists; nudge the model to open.
		messages = append(messages, brtypes.Message{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "Hello"},
			},
		})
	}

	output, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.modelID),
		System:   systemBlocks,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("llm: bedrock converse: %w", err)
	}

	result, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(result.Value.Content) == 0 {
		return "", fmt.Errorf("llm: bedrock returned no content")
	}
	text, ok := result.Value.Content[0].(*brtypes.ContentBlockMemberText)
	if !ok {
		return "", fmt.Errorf("llm: bedrock returned non-text content")
	}
	return strings.TrimSpace(text.Value), nil
}
