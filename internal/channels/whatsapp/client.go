package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// Client talks to the WhatsApp Cloud API: outbound messages on the
// phone-number messages endpoint and media downloads via the media-id
// lookup.
type Client struct {
	apiURL      string
	mediaAPIURL string
	bearerToken string
	httpClient  *http.Client
}

// NewClient creates a Cloud API client. apiURL is the full messages endpoint
// for the business phone number; mediaAPIURL is the Graph base used for
// media-id lookups.
func NewClient(apiURL, mediaAPIURL, bearerToken string) *Client {
	return &Client{
		apiURL:      apiURL,
		mediaAPIURL: mediaAPIURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Send delivers a text message. A non-empty replyTo threads the message onto
// the inbound message it answers.
func (c *Client) Send(ctx context.Context, identity, text, replyTo string) error {
	req := sendRequest{
		MessagingProduct: "whatsapp",
		To:               identity,
		Type:             "text",
		Text:             textBody{Body: text},
	}
	if replyTo != "" {
		req.Context = &sendContext{MessageID: replyTo}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}
	if sendResp.Error != nil {
		return fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// FetchAudio downloads voice-note bytes for a media id. The Cloud API is a
// two-step fetch: resolve the media id to a short-lived URL, then download
// that URL with the same token.
func (c *Client) FetchAudio(ctx context.Context, mediaID string) ([]byte, error) {
	lookupURL := fmt.Sprintf("%s/%s", c.mediaAPIURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create media lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: media lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whatsapp: media lookup status %d: %s", resp.StatusCode, string(body))
	}

	var lookup mediaLookup
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, fmt.Errorf("whatsapp: decode media lookup: %w", err)
	}
	if lookup.URL == "" {
		return nil, fmt.Errorf("whatsapp: media lookup returned no url for %s", mediaID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create media download: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.bearerToken)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: media download: %w", err)
	}
	defer dlResp.Body.Close()

	if dlResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whatsapp: media download status %d", dlResp.StatusCode)
	}

	data, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read media: %w", err)
	}
	return data, nil
}
