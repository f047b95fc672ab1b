package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mediswift/intake-platform/internal/audio"
	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

var openaiTracer = otel.Tracer("mediswift.internal.llm.openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// summarySchema is the JSON schema the summarization pass must satisfy.
var summarySchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "purposeOfVisit": {"type": "string"},
    "symptoms": {"type": "array", "items": {"type": "string"}},
    "symptomDuration": {"type": "string"},
    "chronicDiseases": {"type": "array", "items": {"type": "string"}},
    "allergies": {"type": "array", "items": {"type": "string"}},
    "currentMedications": {"type": "array", "items": {"type": "string"}},
    "previousTreatments": {"type": "array", "items": {"type": "string"}},
    "familyMedicalHistory": {"type": "string"},
    "lifestyleFactors": {"type": "string"},
    "patientConcerns": {"type": "string"},
    "additionalNotes": {"type": "string"}
  },
  "required": ["purposeOfVisit", "symptoms"],
  "additionalProperties": false
}`)

// OpenAIClient backs the dialogue service and the transcription provider with
// the OpenAI API: chat completions for conversation and summarization,
// Whisper for audio.
type OpenAIClient struct {
	client       chatClient
	chatModel    string
	summaryModel string
	logger       *logging.Logger
}

// NewOpenAIClient builds the client. Model names fall back to the defaults
// used in production.
func NewOpenAIClient(client chatClient, chatModel, summaryModel string, logger *logging.Logger) *OpenAIClient {
	if client == nil {
		panic("llm: openai client cannot be nil")
	}
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if summaryModel == "" {
		summaryModel = "gpt-4o-2024-08-06"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{
		client:       client,
		chatModel:    chatModel,
		summaryModel: summaryModel,
		logger:       logger,
	}
}

var _ conversation.DialogueClient = (*OpenAIClient)(nil)
var _ audio.Transcriber = (*OpenAIClient)(nil)

// Converse runs one chat turn over the full transcript.
func (c *OpenAIClient) Converse(ctx context.Context, transcript []session.Turn, language string) (string, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.converse")
	defer span.End()
	span.SetAttributes(
		attribute.String("mediswift.language", language),
		attribute.Int("mediswift.turns", len(transcript)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: toMessages(transcript),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize produces the structured clinical summary, constrained by the
// summary JSON schema. The caller supplies the instruction as the leading
// system turn.
func (c *OpenAIClient) Summarize(ctx context.Context, transcript []session.Turn) (string, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.summarize")
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.summaryModel,
		Messages: toMessages(transcript),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "clinical_summary",
				Schema: summarySchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: summarization: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: summarization returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ConvertSummaryToDisplay reshapes the structured summary into the
// doctor-facing JSON form.
func (c *OpenAIClient) ConvertSummaryToDisplay(ctx context.Context, summary string) (string, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.display_convert")
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: conversation.DisplayConversionInstruction},
			{Role: openai.ChatMessageRoleUser, Content: summary},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: display conversion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: display conversion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// TranscribeShort runs a single-shot Whisper transcription.
func (c *OpenAIClient) TranscribeShort(ctx context.Context, path string) (string, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.transcribe_short")
	defer span.End()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm: transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// TranscribeWithTimestamps runs Whisper in verbose mode and returns
// per-segment timings for diarization alignment.
func (c *OpenAIClient) TranscribeWithTimestamps(ctx context.Context, path string) ([]audio.Segment, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.transcribe_timestamps")
	defer span.End()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("llm: timestamped transcription: %w", err)
	}
	segments := make([]audio.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, audio.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return segments, nil
}

func toMessages(transcript []session.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, turn := range transcript {
		role := openai.ChatMessageRoleUser
		switch turn.Role {
		case session.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case session.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}
