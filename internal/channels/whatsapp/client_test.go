package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Send(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test_token" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Messages: []struct {
			ID string `json:"id"`
		}{{ID: "wamid.out"}}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "test_token")
	if err := client.Send(context.Background(), "919876543210", "Hello", "wamid.in"); err != nil {
		t.Fatal(err)
	}
	if received.To != "919876543210" {
		t.Errorf("to = %s, want 919876543210", received.To)
	}
	if received.Text.Body != "Hello" {
		t.Errorf("text = %s, want Hello", received.Text.Body)
	}
	if received.Context == nil || received.Context.MessageID != "wamid.in" {
		t.Errorf("context = %+v, want reply to wamid.in", received.Context)
	}
	if received.MessagingProduct != "whatsapp" {
		t.Errorf("messaging_product = %s", received.MessagingProduct)
	}
}

func TestClient_SendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Error: &sendError{Code: 131030, Message: "Recipient not in allowed list"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "test_token")
	if err := client.Send(context.Background(), "919876543210", "Hello", ""); err == nil {
		t.Fatal("expected error for API error response")
	}
}

func TestClient_FetchAudio(t *testing.T) {
	audio := []byte("OggS voice bytes")
	var mediaServer *httptest.Server
	mediaServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test_token" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/media-123":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"url":%q,"mime_type":"audio/ogg"}`, mediaServer.URL+"/download")
		case "/download":
			w.Write(audio)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer mediaServer.Close()

	client := NewClient("", mediaServer.URL, "test_token")
	data, err := client.FetchAudio(context.Background(), "media-123")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(audio) {
		t.Errorf("downloaded %q, want %q", data, audio)
	}
}

func TestClient_FetchAudioLookupFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "media expired", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("", server.URL, "test_token")
	if _, err := client.FetchAudio(context.Background(), "gone"); err == nil {
		t.Fatal("expected error for expired media")
	}
}
