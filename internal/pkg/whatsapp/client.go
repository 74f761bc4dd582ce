// Package whatsapp wraps the messaging platform's Cloud API behind a
// plain Send call. Media and templates are out of scope; the bot only
// speaks text.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nevera/nevera_server/config"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// Sender is the outbound capability the services depend on.
type Sender interface {
	Send(ctx context.Context, phone, text string) (bool, error)
}

type Client struct {
	httpClient    *http.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

func NewClient(cfg *config.WhatsAppConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL:       graphBaseURL,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// Send delivers one text message. The boolean mirrors the platform's
// accepted/rejected outcome; err covers transport-level failures.
func (c *Client) Send(ctx context.Context, phone, text string) (bool, error) {
	payload := sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             sendText{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return false, fmt.Errorf("send message: status %d: %s", resp.StatusCode, respBody)
	}
	return true, nil
}
