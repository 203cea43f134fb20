// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notify sends the response email, with the generated calendar
// attached, through the Postmark API.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client sends outbound email via Postmark.
type Client struct {
	baseURL     string
	serverToken string
	sender      string
	httpClient  *http.Client
}

// NewClient creates a Postmark client. sender must be a registered sender
// signature on the Postmark server.
func NewClient(baseURL, serverToken, sender string) *Client {
	return &Client{
		baseURL:     baseURL,
		serverToken: serverToken,
		sender:      sender,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// attachment follows Postmark's attachment JSON contract.
type attachment struct {
	Name        string `json:"Name"`
	Content     string `json:"Content"`
	ContentType string `json:"ContentType"`
	ContentID   string `json:"ContentID"`
}

// message follows Postmark's send-email JSON contract.
type message struct {
	From        string       `json:"From"`
	To          string       `json:"To"`
	Subject     string       `json:"Subject"`
	HtmlBody    string       `json:"HtmlBody"`
	Attachments []attachment `json:"Attachments,omitempty"`
}

// sendResponse is the relevant subset of Postmark's response.
type sendResponse struct {
	To          string `json:"To"`
	SubmittedAt string `json:"SubmittedAt"`
	MessageID   string `json:"MessageID"`
	ErrorCode   int    `json:"ErrorCode"`
	Message     string `json:"Message"`
}

// SendEventMail sends the response email. A non-empty icsContent is
// attached as "event.ics" with content type text/calendar. Returns the
// provider message ID.
func (c *Client) SendEventMail(ctx context.Context, to, subject, htmlBody, icsContent string) (string, error) {
	msg := message{
		From:     c.sender,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
	}
	if icsContent != "" {
		msg.Attachments = []attachment{
			{
				Name:        "event.ics",
				Content:     base64.StdEncoding.EncodeToString([]byte(icsContent)),
				ContentType: "text/calendar",
			},
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	// Status first: error bodies are not guaranteed to be JSON (a gateway
	// 502 serves HTML).
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("postmark returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if result.ErrorCode != 0 {
		return "", fmt.Errorf("postmark error code %d: %s", result.ErrorCode, result.Message)
	}

	slog.Info("response email sent",
		"to", to,
		"provider_message_id", result.MessageID,
	)

	return result.MessageID, nil
}
