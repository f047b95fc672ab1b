package whatsapp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mediswift/intake-platform/internal/conversation"
	"github.com/mediswift/intake-platform/pkg/logging"
)

// WebhookHandler answers the Cloud API verification challenge and turns
// inbound webhook events into conversation events.
type WebhookHandler struct {
	verifyToken string
	onInbound   func(conversation.Inbound)
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. onInbound is called for every
// parsed inbound message.
func NewWebhookHandler(verifyToken string, onInbound func(conversation.Inbound), logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{verifyToken: verifyToken, onInbound: onInbound, logger: logger}
}

// HandleVerification handles the GET verification challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events (incoming messages).
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Meta retries on anything but a fast 200.
	w.WriteHeader(http.StatusOK)

	for _, in := range parseWebhookEvent(event) {
		if h.onInbound != nil {
			h.onInbound(in)
		}
	}
}

// parseWebhookEvent extracts conversation events from a webhook payload.
// Status callbacks and unsupported message types are skipped.
func parseWebhookEvent(event webhookEvent) []conversation.Inbound {
	var out []conversation.Inbound
	for _, e := range event.Entry {
		for _, ch := range e.Changes {
			for _, m := range ch.Value.Messages {
				in := conversation.Inbound{
					Identity:   m.From,
					Channel:    conversation.ChannelWhatsApp,
					MessageRef: m.ID,
				}
				switch m.Type {
				case "text":
					if m.Text == nil {
						continue
					}
					in.Text = m.Text.Body
				case "audio", "voice":
					if m.Audio == nil {
						continue
					}
					in.AudioRef = m.Audio.ID
				case "interactive":
					if m.Interactive == nil {
						continue
					}
					reply := m.Interactive.ListReply
					if reply == nil {
						reply = m.Interactive.ButtonReply
					}
					if reply == nil {
						continue
					}
					in.LanguageSelector = reply.Title
					in.Text = reply.Title
				default:
					continue
				}
				out = append(out, in)
			}
		}
	}
	return out
}
