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

package prepare

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/voxlify/mailcal/internal/models"
)

// TestBuild_EmptyEmail verifies that an email with no body and no
// attachments prepares to empty text and an empty image list.
func TestBuild_EmptyEmail(t *testing.T) {
	content := Build(&models.InboundEmail{})

	if content.Text != "" {
		t.Errorf("text = %q, want empty", content.Text)
	}
	if len(content.Images) != 0 {
		t.Errorf("images = %d, want 0", len(content.Images))
	}
}

// TestBuild_ImagePassthrough verifies that image attachments become inline
// image references with the payload unchanged, in receipt order.
func TestBuild_ImagePassthrough(t *testing.T) {
	email := &models.InboundEmail{
		TextBody: "see attached",
		Attachments: []models.InboundAttachment{
			{Name: "a.png", ContentType: "image/png", Content: "cGF5bG9hZC1h"},
			{Name: "b.jpg", ContentType: "image/jpeg", Content: "cGF5bG9hZC1i"},
		},
	}

	content := Build(email)

	if content.Text != "see attached" {
		t.Errorf("text = %q, want %q", content.Text, "see attached")
	}
	if len(content.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(content.Images))
	}
	if content.Images[0].ContentType != "image/png" || content.Images[0].Base64Data != "cGF5bG9hZC1h" {
		t.Errorf("first image = %+v, want unchanged png payload", content.Images[0])
	}
	if content.Images[1].ContentType != "image/jpeg" {
		t.Errorf("second image content type = %q, want image/jpeg", content.Images[1].ContentType)
	}
}

// TestBuild_IgnoresOtherTypes verifies that non-image, non-PDF attachments
// contribute nothing.
func TestBuild_IgnoresOtherTypes(t *testing.T) {
	email := &models.InboundEmail{
		TextBody: "body",
		Attachments: []models.InboundAttachment{
			{Name: "notes.txt", ContentType: "text/plain", Content: "aGVsbG8="},
			{Name: "data.zip", ContentType: "application/zip", Content: "aGVsbG8="},
		},
	}

	content := Build(email)

	if content.Text != "body" {
		t.Errorf("text = %q, want %q", content.Text, "body")
	}
	if len(content.Images) != 0 {
		t.Errorf("images = %d, want 0", len(content.Images))
	}
}

// TestBuild_PDFFailureDegradesToMarker verifies that a PDF attachment that
// cannot be decoded or parsed produces a failure marker instead of aborting.
func TestBuild_PDFFailureDegradesToMarker(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "invalid base64",
			content: "%%%not-base64%%%",
		},
		{
			name:    "valid base64, not a pdf",
			content: base64.StdEncoding.EncodeToString([]byte("this is not a pdf")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &models.InboundEmail{
				TextBody: "body",
				Attachments: []models.InboundAttachment{
					{Name: "itinerary.pdf", ContentType: "application/pdf", Content: tt.content},
				},
			}

			content := Build(email)

			want := "--- Failed to process PDF Attachment: itinerary.pdf ---"
			if !strings.Contains(content.Text, want) {
				t.Errorf("text = %q, want marker %q", content.Text, want)
			}
			if !strings.HasPrefix(content.Text, "body") {
				t.Errorf("text = %q, want original body preserved", content.Text)
			}
		})
	}
}
