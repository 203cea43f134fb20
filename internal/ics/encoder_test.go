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

package ics

import (
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-ical"

	"github.com/voxlify/mailcal/internal/models"
)

func validEvent(title string) models.ExtractedEvent {
	return models.ExtractedEvent{
		Title:     title,
		StartDate: "2025-07-01T10:00:00Z",
		EndDate:   "2025-07-01T11:00:00Z",
	}
}

// decodeEventCount re-parses a generated document and counts VEVENTs.
func decodeEventCount(t *testing.T, doc string) int {
	t.Helper()
	decoder := ical.NewDecoder(strings.NewReader(doc))
	count := 0
	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode generated calendar: %v", err)
		}
		for _, comp := range cal.Children {
			if comp.Name == ical.CompEvent {
				count++
			}
		}
	}
	return count
}

func TestEncode_EmptyInput(t *testing.T) {
	doc, err := Encode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != "" {
		t.Errorf("doc = %q, want empty", doc)
	}
}

// TestEncode_RoundTrip verifies that re-parsing the generated document
// yields exactly one VEVENT per event with valid dates.
func TestEncode_RoundTrip(t *testing.T) {
	events := []models.ExtractedEvent{
		validEvent("Flight to Paris"),
		{Title: "Broken", StartDate: "not-a-date", EndDate: "2025-07-01T11:00:00Z"},
		{
			Title:     "Dinner",
			StartDate: "2025-07-01T19:00:00Z",
			EndDate:   "2025-07-01T21:00:00Z",
			Location:  "Le Procope",
		},
	}

	doc, err := Encode(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc == "" {
		t.Fatal("expected a document, got none")
	}

	if got := decodeEventCount(t, doc); got != 2 {
		t.Errorf("VEVENT count = %d, want 2 (invalid-date event skipped)", got)
	}
	for _, want := range []string{"SUMMARY:Flight to Paris", "SUMMARY:Dinner", "LOCATION:Le Procope", "STATUS:CONFIRMED"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "Broken") {
		t.Error("skipped event leaked into the document")
	}
}

// TestEncode_AllInvalidDates verifies that a batch where every event is
// skipped yields no document rather than an error.
func TestEncode_AllInvalidDates(t *testing.T) {
	events := []models.ExtractedEvent{
		{Title: "A", StartDate: "garbage", EndDate: "2025-07-01T11:00:00Z"},
		{Title: "B", StartDate: "2025-07-01T10:00:00Z", EndDate: "also garbage"},
	}

	doc, err := Encode(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != "" {
		t.Errorf("doc = %q, want empty", doc)
	}
}

// TestEncode_TimezoneAnnotation verifies the informational local-time
// rendering without changing the encoded UTC instant.
func TestEncode_TimezoneAnnotation(t *testing.T) {
	events := []models.ExtractedEvent{
		{
			Title:       "Standup",
			StartDate:   "2025-07-01T14:00:00Z",
			EndDate:     "2025-07-01T14:30:00Z",
			Description: "Daily sync",
			Timezone:    "America/New_York",
		},
	}

	doc, err := Encode(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Content lines over 75 octets are folded; unfold before matching.
	unfolded := strings.ReplaceAll(doc, "\r\n ", "")

	// 14:00 UTC is 10:00 in New York on that date.
	if !strings.Contains(unfolded, "Local time: Tue") || !strings.Contains(unfolded, "10:00 (America/New_York)") {
		t.Errorf("document missing local time annotation:\n%s", doc)
	}
	if !strings.Contains(unfolded, "DTSTART:20250701T140000Z") {
		t.Errorf("encoded instant must stay UTC:\n%s", doc)
	}
}

// TestEncode_UnknownTimezoneIgnored verifies a bad timezone name does not
// fail encoding.
func TestEncode_UnknownTimezoneIgnored(t *testing.T) {
	ev := validEvent("Call")
	ev.Timezone = "Not/AZone"

	doc, err := Encode([]models.ExtractedEvent{ev})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := decodeEventCount(t, doc); got != 1 {
		t.Errorf("VEVENT count = %d, want 1", got)
	}
	if strings.Contains(doc, "Local time:") {
		t.Error("unknown timezone must not produce an annotation")
	}
}

// TestEncode_Idempotent verifies two encodings of the same list are
// identical apart from generated UIDs and timestamps.
func TestEncode_Idempotent(t *testing.T) {
	events := []models.ExtractedEvent{validEvent("A"), validEvent("B")}

	first, err := Encode(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Encode(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stripGenerated(first) != stripGenerated(second) {
		t.Errorf("documents differ beyond UID/DTSTAMP:\n%s\n---\n%s", first, second)
	}
}

// stripGenerated drops UID and DTSTAMP lines, which are expected to differ
// between encodings.
func stripGenerated(doc string) string {
	var kept []string
	for _, line := range strings.Split(doc, "\r\n") {
		if strings.HasPrefix(line, "UID:") || strings.HasPrefix(line, "DTSTAMP:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\r\n")
}
