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

// Package prepare normalizes a raw inbound email into model-ready input:
// the body text, any PDF-derived text with provenance markers, and inline
// image references in receipt order.
package prepare

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/voxlify/mailcal/internal/models"
)

// Build derives PreparedContent from an inbound email. It is a pure
// transform: a single attachment's decode or extract failure degrades to a
// text marker instead of failing the whole step.
func Build(email *models.InboundEmail) models.PreparedContent {
	var text strings.Builder
	text.WriteString(email.TextBody)

	var images []models.InlineImage

	for _, att := range email.Attachments {
		switch {
		case strings.HasPrefix(att.ContentType, "image/") && att.Content != "":
			// Pass the payload through unchanged; the model API takes the
			// base64 data embedded in a data URL.
			images = append(images, models.InlineImage{
				ContentType: att.ContentType,
				Base64Data:  att.Content,
			})
			slog.Debug("prepared image attachment", "name", att.Name, "content_type", att.ContentType)

		case att.ContentType == "application/pdf" && att.Content != "":
			pdfText, err := extractPDFText(att.Content)
			if err != nil {
				slog.Warn("failed to process PDF attachment",
					"name", att.Name,
					"error", err,
				)
				fmt.Fprintf(&text, "\n\n--- Failed to process PDF Attachment: %s ---", att.Name)
				continue
			}
			fmt.Fprintf(&text, "\n\n--- PDF Attachment Content: %s ---\n%s", att.Name, pdfText)
			slog.Debug("extracted text from PDF attachment", "name", att.Name)
		}
	}

	return models.PreparedContent{
		Text:   text.String(),
		Images: images,
	}
}

// extractPDFText decodes a base64 PDF payload and returns the concatenated
// page text in page order, pages joined by a blank line. The pdf reader can
// panic on malformed input, so that is converted into an error here.
func extractPDFText(content string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n\n"), nil
}
