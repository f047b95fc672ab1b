package telegram

import "encoding/json"

// update is a single Bot API webhook update.
type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *tgMsg   `json:"message,omitempty"`
	Callback *cbQuery `json:"callback_query,omitempty"`
}

type tgMsg struct {
	MessageID int64   `json:"message_id"`
	From      *tgUser `json:"from,omitempty"`
	Chat      tgChat  `json:"chat"`
	Text      string  `json:"text,omitempty"`
	Voice     *tgFile `json:"voice,omitempty"`
	Audio     *tgFile `json:"audio,omitempty"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgFile struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

// cbQuery is an inline-keyboard button press; Data carries the selection.
type cbQuery struct {
	ID      string `json:"id"`
	From    tgUser `json:"from"`
	Message *tgMsg `json:"message,omitempty"`
	Data    string `json:"data"`
}

type sendMessageRequest struct {
	ChatID           string `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type fileResult struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}
