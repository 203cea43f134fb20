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

// Package models defines the data structures shared across the mailcal service.
package models

// InboundAddress is a structured sender or recipient from the mail provider.
type InboundAddress struct {
	Email       string `json:"Email"`
	Name        string `json:"Name,omitempty"`
	MailboxHash string `json:"MailboxHash,omitempty"`
}

// InboundAttachment is a file attached to an inbound email.
// Content is base64 encoded by the provider.
type InboundAttachment struct {
	Name          string `json:"Name"`
	Content       string `json:"Content"`
	ContentType   string `json:"ContentType"`
	ContentLength int    `json:"ContentLength"`
	ContentID     string `json:"ContentID,omitempty"`
}

// InboundEmail is the inbound webhook payload as the mail provider POSTs it.
//
// Field names follow the provider's JSON contract (Postmark inbound hook),
// so this struct is decoded straight off the wire and treated read-only
// from then on.
type InboundEmail struct {
	From        string              `json:"From,omitempty"`
	FromFull    *InboundAddress     `json:"FromFull,omitempty"`
	Subject     string              `json:"Subject,omitempty"`
	TextBody    string              `json:"TextBody,omitempty"`
	HtmlBody    string              `json:"HtmlBody,omitempty"`
	Attachments []InboundAttachment `json:"Attachments,omitempty"`
	Date        string              `json:"Date,omitempty"`
	MessageID   string              `json:"MessageID,omitempty"`
}

// SenderAddress returns the structured sender address if present,
// falling back to the plain From header. Empty means the payload
// carried no usable sender.
func (e *InboundEmail) SenderAddress() string {
	if e.FromFull != nil && e.FromFull.Email != "" {
		return e.FromFull.Email
	}
	return e.From
}

// InlineImage is an image attachment carried through to the extraction
// model unchanged: original MIME type plus the provider's base64 payload.
type InlineImage struct {
	ContentType string
	Base64Data  string
}

// PreparedContent is the model-ready rendering of one inbound email:
// body text (plus any PDF-derived text with provenance markers) and the
// inline images in receipt order. Derived once, never mutated.
type PreparedContent struct {
	Text   string
	Images []InlineImage
}
