package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Send(t *testing.T) {
	var received sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.SetAPIBase(server.URL)

	if err := client.Send(context.Background(), "100200300", "Hello", "41"); err != nil {
		t.Fatal(err)
	}
	if received.ChatID != "100200300" {
		t.Errorf("chat_id = %s", received.ChatID)
	}
	if received.Text != "Hello" {
		t.Errorf("text = %s", received.Text)
	}
	if received.ReplyToMessageID != 41 {
		t.Errorf("reply_to_message_id = %d, want 41", received.ReplyToMessageID)
	}
}

func TestClient_SendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"bot was blocked by the user"}`)
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.SetAPIBase(server.URL)

	if err := client.Send(context.Background(), "100200300", "Hello", ""); err == nil {
		t.Fatal("expected error for blocked bot")
	}
}

func TestClient_FetchAudio(t *testing.T) {
	audio := []byte("OggS telegram voice")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			if r.URL.Query().Get("file_id") != "voice-9" {
				t.Errorf("file_id = %s", r.URL.Query().Get("file_id"))
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"voice-9","file_path":"voice/file_9.oga"}}`)
		case "/file/bottest-token/voice/file_9.oga":
			w.Write(audio)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient("test-token")
	client.SetAPIBase(server.URL)

	data, err := client.FetchAudio(context.Background(), "voice-9")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(audio) {
		t.Errorf("downloaded %q, want %q", data, audio)
	}
}
