package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// languageCallbackPrefix marks inline-keyboard presses that select the
// conversation language, e.g. "lang:hindi".
const languageCallbackPrefix = "lang:"

// WebhookHandler turns Bot API updates into conversation events.
type WebhookHandler struct {
	onInbound func(conversation.Inbound)
	logger    *logging.Logger
}

// NewWebhookHandler creates a webhook handler. onInbound is called for every
// parsed update.
func NewWebhookHandler(onInbound func(conversation.Inbound), logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{onInbound: onInbound, logger: logger}
}

// HandleInbound handles POST webhook updates from Telegram.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var u update
	if err := json.Unmarshal(body, &u); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	in, ok := parseUpdate(u)
	if !ok {
		return
	}
	if h.onInbound != nil {
		h.onInbound(in)
	}
}

// parseUpdate extracts a conversation event from an update. The second
// return is false for updates that carry nothing actionable.
func parseUpdate(u update) (conversation.Inbound, bool) {
	if u.Callback != nil {
		in := conversation.Inbound{
			Identity: strconv.FormatInt(u.Callback.From.ID, 10),
			Channel:  conversation.ChannelTelegram,
			Text:     u.Callback.Data,
		}
		if lang, ok := strings.CutPrefix(u.Callback.Data, languageCallbackPrefix); ok {
			in.LanguageSelector = lang
			in.Text = lang
		}
		if u.Callback.Message != nil {
			in.MessageRef = strconv.FormatInt(u.Callback.Message.MessageID, 10)
		}
		return in, true
	}

	m := u.Message
	if m == nil || m.Chat.ID == 0 {
		return conversation.Inbound{}, false
	}
	in := conversation.Inbound{
		Identity:   strconv.FormatInt(m.Chat.ID, 10),
		Channel:    conversation.ChannelTelegram,
		MessageRef: strconv.FormatInt(m.MessageID, 10),
	}
	switch {
	case m.Voice != nil:
		in.AudioRef = m.Voice.FileID
	case m.Audio != nil:
		in.AudioRef = m.Audio.FileID
	case m.Text != "":
		in.Text = m.Text
	default:
		return conversation.Inbound{}, false
	}
	return in, true
}
