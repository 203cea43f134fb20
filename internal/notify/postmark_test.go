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

package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendEventMail(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/email" {
			t.Errorf("path = %q, want /email", r.URL.Path)
		}
		if token := r.Header.Get("X-Postmark-Server-Token"); token != "server-token" {
			t.Errorf("server token = %q, want server-token", token)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(sendResponse{MessageID: "pm-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-token", "events@example.com")

	id, err := c.SendEventMail(context.Background(), "user@example.com", "Your events", "<p>hi</p>", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "pm-123" {
		t.Errorf("message id = %q, want pm-123", id)
	}

	if got.From != "events@example.com" || got.To != "user@example.com" {
		t.Errorf("addresses = %q -> %q, want configured sender and recipient", got.From, got.To)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Name != "event.ics" || att.ContentType != "text/calendar" {
		t.Errorf("attachment = %q (%s), want event.ics (text/calendar)", att.Name, att.ContentType)
	}
	decoded, err := base64.StdEncoding.DecodeString(att.Content)
	if err != nil {
		t.Fatalf("attachment content is not base64: %v", err)
	}
	if string(decoded) != "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n" {
		t.Errorf("attachment content = %q, want the calendar document", decoded)
	}
}

func TestSendEventMail_NoAttachmentWhenEmpty(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(sendResponse{MessageID: "pm-124"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", "events@example.com")

	if _, err := c.SendEventMail(context.Background(), "user@example.com", "s", "<p>b</p>", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Attachments) != 0 {
		t.Errorf("attachments = %d, want none", len(got.Attachments))
	}
}

func TestSendEventMail_ProviderError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   sendResponse
	}{
		{
			name:   "http error",
			status: http.StatusUnprocessableEntity,
			body:   sendResponse{ErrorCode: 300, Message: "invalid recipient"},
		},
		{
			name:   "error code with 200",
			status: http.StatusOK,
			body:   sendResponse{ErrorCode: 406, Message: "inactive recipient"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "t", "events@example.com")

			if _, err := c.SendEventMail(context.Background(), "user@example.com", "s", "b", ""); err == nil {
				t.Fatal("expected provider error, got none")
			}
		})
	}
}

// TestSendEventMail_NonJSONErrorBody verifies a gateway error with an HTML
// body reports the HTTP status instead of a decode failure.
func TestSendEventMail_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", "events@example.com")

	_, err := c.SendEventMail(context.Background(), "user@example.com", "s", "b", "")
	if err == nil {
		t.Fatal("expected error for HTTP 502, got none")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want HTTP status in message", err)
	}
	if strings.Contains(err.Error(), "decode") {
		t.Errorf("error = %v, decode failure must not mask the status", err)
	}
}
