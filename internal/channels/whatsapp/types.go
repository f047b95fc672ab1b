package whatsapp

// webhookEvent is the top-level structure received from the Cloud API webhook.
type webhookEvent struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string `json:"field"`
	Value value  `json:"value"`
}

type value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []message `json:"messages"`
}

type message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Type        string       `json:"type"`
	Text        *textBody    `json:"text,omitempty"`
	Audio       *mediaBody   `json:"audio,omitempty"`
	Interactive *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

type interactive struct {
	Type        string  `json:"type"`
	ListReply   *replyT `json:"list_reply,omitempty"`
	ButtonReply *replyT `json:"button_reply,omitempty"`
}

type replyT struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// sendRequest is the payload for outbound text messages.
type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             textBody     `json:"text"`
	Context          *sendContext `json:"context,omitempty"`
}

type sendContext struct {
	MessageID string `json:"message_id"`
}

type sendError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *sendError `json:"error,omitempty"`
}

// mediaLookup is the response of the media-id endpoint; the returned URL is
// short-lived and must be fetched with the same bearer token.
type mediaLookup struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}
