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

package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxlify/mailcal/internal/models"
)

const (
	// maxBodyChars caps how much body text goes into the prompt.
	// Truncation favours latency and cost over completeness.
	maxBodyChars = 4000

	truncationMarker = "\n[... content truncated ...]"
)

// buildTextMessages constructs the single-turn prompt for text-only mode.
func buildTextMessages(now time.Time, subject, text string) []ChatMessage {
	prompt := fmt.Sprintf(`Extract calendar events from this email content.
Return a JSON object with an "events" array. Each event should include these fields:
- title (string)
- startDate (string, ISO 8601 format, e.g. YYYY-MM-DDTHH:mm:ssZ)
- endDate (string, ISO 8601 format, e.g. YYYY-MM-DDTHH:mm:ssZ)
- location (string, optional)
- description (string, optional)
- timezone (string, IANA timezone name like 'America/New_York', optional, try to infer if possible)

If you cannot determine a field, omit it or set it to null. Ensure dates are fully qualified.
Current time context for relative dates (e.g. "tomorrow"): %s
Email Subject: %s
Email Body / PDF Text:
%s`, now.UTC().Format(time.RFC3339), subjectOrPlaceholder(subject), truncate(text))

	return []ChatMessage{{Role: "user", Content: prompt}}
}

// buildVisionMessages constructs the single-turn prompt for multimodal mode:
// instruction text, then the prepared text if non-empty, then every inline
// image in receipt order.
func buildVisionMessages(now time.Time, subject string, content models.PreparedContent) []ChatMessage {
	instruction := fmt.Sprintf(`Extract calendar events from the provided email content and/or images.
Return a JSON object with an "events" array. Each event should include: title, startDate and endDate (ISO 8601), and optionally location, description and timezone (IANA name).
Current time context for relative dates (e.g. "tomorrow"): %s
Email Subject: %s`, now.UTC().Format(time.RFC3339), subjectOrPlaceholder(subject))

	parts := []ContentPart{{Type: "text", Text: instruction}}

	if strings.TrimSpace(content.Text) != "" {
		parts = append(parts, ContentPart{
			Type: "text",
			Text: "Email Body / PDF Text:\n" + truncate(content.Text),
		})
	}

	for _, img := range content.Images {
		parts = append(parts, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", img.ContentType, img.Base64Data),
			},
		})
	}

	return []ChatMessage{{Role: "user", Content: parts}}
}

func subjectOrPlaceholder(subject string) string {
	if subject == "" {
		return "N/A"
	}
	return subject
}

func truncate(text string) string {
	if len(text) <= maxBodyChars {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := maxBodyChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationMarker
}
