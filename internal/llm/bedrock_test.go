package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/mediswift/intake-platform/internal/session"
	"github.com/mediswift/intake-platform/pkg/logging"
)

type fakeBedrock struct {
	lastInput *bedrockruntime.ConverseInput
	reply     string
	err       error
}

func (f *fakeBedrock) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: f.reply},
				},
			},
		},
	}, nil
}

func TestBedrockClient_ConverseSplitsSystemBlocks(t *testing.T) {
	fake := &fakeBedrock{reply: "tell me more"}
	c := NewBedrockClient(fake, "anthropic.claude-3-haiku", logging.Default())

	reply, err := c.Converse(context.Background(), []session.Turn{
		{Role: session.RoleSystem, Content: "prompt"},
		{Role: session.RoleUser, Content: "I feel dizzy"},
	}, "English")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "tell me more" {
		t.Fatalf("got %q", reply)
	}
	if len(fake.lastInput.System) != 1 {
		t.Fatalf("expected system prompt in system blocks, got %d", len(fake.lastInput.System))
	}
	if len(fake.lastInput.Messages) != 1 {
		t.Fatalf("expected one user message, got %d", len(fake.lastInput.Messages))
	}
}

func TestBedrockClient_SummarizeAddsJSONDirective(t *testing.T) {
	fake := &fakeBedrock{reply: `{"purposeOfVisit":"dizziness"}`}
	c := NewBedrockClient(fake, "anthropic.claude-3-haiku", logging.Default())

	out, err := c.Summarize(context.Background(), []session.Turn{
		{Role: session.RoleSystem, Content: "summarize"},
		{Role: session.RoleUser, Content: "I feel dizzy"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"purposeOfVisit":"dizziness"}` {
		t.Fatalf("got %q", out)
	}
	if len(fake.lastInput.System) != 2 {
		t.Fatalf("expected instruction + JSON directive, got %d system blocks", len(fake.lastInput.System))
	}
}

func TestBedrockClient_ErrorPropagates(t *testing.T) {
	fake := &fakeBedrock{err: errors.New("throttled")}
	c := NewBedrockClient(fake, "anthropic.claude-3-haiku", logging.Default())

	if _, err := c.Converse(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}}, "English"); err == nil {
		t.Fatal("expected error")
	}
}
