package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Attachment is one file carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outbound mail to one recipient.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers messages through an external collaborator.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// GatewayMailer posts messages as JSON to an HTTP mail gateway.
type GatewayMailer struct {
	client *http.Client
	url    string
	apiKey string
	from   string
}

// GatewaySettings configures the gateway connection.
type GatewaySettings struct {
	URL     string
	APIKey  string
	From    string
	Timeout time.Duration
}

func NewGatewayMailer(settings GatewaySettings) *GatewayMailer {
	timeout := settings.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GatewayMailer{
		client: &http.Client{Timeout: timeout},
		url:    settings.URL,
		apiKey: settings.APIKey,
		from:   settings.From,
	}
}

type gatewayAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type gatewayPayload struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	TextContent string              `json:"text_content"`
	Attachments []gatewayAttachment `json:"attachments,omitempty"`
}

func (m *GatewayMailer) Send(ctx context.Context, msg Message) error {
	payload := gatewayPayload{
		From:        m.from,
		To:          msg.To,
		Subject:     msg.Subject,
		TextContent: msg.Body,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, gatewayAttachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     base64.StdEncoding.EncodeToString(a.Data),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail gateway returned status %d", resp.StatusCode)
	}
	return nil
}
