package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mediswift/intake-platform/internal/conversation"
)

func TestParseUpdate_Text(t *testing.T) {
	in, ok := parseUpdate(update{
		UpdateID: 1,
		Message: &tgMsg{
			MessageID: 42,
			Chat:      tgChat{ID: 100200300},
			Text:      "my knee hurts",
		},
	})
	if !ok {
		t.Fatal("expected event")
	}
	if in.Identity != "100200300" || in.Channel != conversation.ChannelTelegram {
		t.Errorf("identity/channel = %s/%s", in.Identity, in.Channel)
	}
	if in.Text != "my knee hurts" || in.MessageRef != "42" {
		t.Errorf("parsed = %+v", in)
	}
}

func TestParseUpdate_Voice(t *testing.T) {
	in, ok := parseUpdate(update{
		Message: &tgMsg{
			MessageID: 43,
			Chat:      tgChat{ID: 100200300},
			Voice:     &tgFile{FileID: "voice-9", Duration: 12},
		},
	})
	if !ok {
		t.Fatal("expected event")
	}
	if in.AudioRef != "voice-9" || in.Text != "" {
		t.Errorf("parsed = %+v", in)
	}
}

func TestParseUpdate_LanguageCallback(t *testing.T) {
	in, ok := parseUpdate(update{
		Callback: &cbQuery{
			From:    tgUser{ID: 100200300},
			Data:    "lang:hindi",
			Message: &tgMsg{MessageID: 44, Chat: tgChat{ID: 100200300}},
		},
	})
	if !ok {
		t.Fatal("expected event")
	}
	if in.LanguageSelector != "hindi" {
		t.Errorf("language selector = %q, want hindi", in.LanguageSelector)
	}
	if in.MessageRef != "44" {
		t.Errorf("message ref = %q", in.MessageRef)
	}
}

func TestParseUpdate_EmptyUpdate(t *testing.T) {
	if _, ok := parseUpdate(update{UpdateID: 7}); ok {
		t.Fatal("expected no event for empty update")
	}
}

func TestWebhookInbound(t *testing.T) {
	var got []conversation.Inbound
	h := NewWebhookHandler(func(in conversation.Inbound) { got = append(got, in) }, nil)

	body := `{"update_id":1,"message":{"message_id":42,"chat":{"id":100200300},"text":"hello"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleInbound(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("parsed = %+v", got)
	}
}
