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

// Package ics converts extracted events into a standards-compliant
// iCalendar document.
package ics

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/voxlify/mailcal/internal/models"
)

// timestampLayouts are tried in order when parsing event dates. The model
// is asked for RFC 3339 but does not always comply.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Encode converts events into one iCalendar document. Events whose start or
// end date cannot be parsed are skipped with a warning. An empty input list,
// or a list where every event was skipped, yields an empty document and no
// error; only a structural encoding failure returns an error.
//
// Encoded instants are always UTC. A present IANA timezone only adds a
// human-readable rendering of the local start time to the description.
func Encode(events []models.ExtractedEvent) (string, error) {
	if len(events) == 0 {
		slog.Debug("no events provided, skipping calendar generation")
		return "", nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//mailcal//EN")

	encoded := 0
	for _, event := range events {
		start, err := parseTimestamp(event.StartDate)
		if err != nil {
			slog.Warn("invalid start date, skipping event", "title", event.Title, "start", event.StartDate)
			continue
		}
		end, err := parseTimestamp(event.EndDate)
		if err != nil {
			slog.Warn("invalid end date, skipping event", "title", event.Title, "end", event.EndDate)
			continue
		}

		cal.Children = append(cal.Children, buildEvent(event, start, end))
		encoded++
	}

	if encoded == 0 {
		slog.Warn("every event had invalid dates, no calendar generated", "events", len(events))
		return "", nil
	}

	var buf strings.Builder
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}

	return buf.String(), nil
}

// buildEvent constructs one VEVENT component.
func buildEvent(event models.ExtractedEvent, start, end time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uuid.New().String())
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetText(ical.PropStatus, "CONFIRMED")

	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}

	description := event.Description
	if annotation := localTimeAnnotation(start, event.Timezone); annotation != "" {
		if description != "" {
			description += "\n"
		}
		description += annotation
	}
	if description != "" {
		ve.Props.SetText(ical.PropDescription, description)
	}

	return ve
}

// localTimeAnnotation renders the start instant in the event's timezone,
// informational only. Unknown timezone names are ignored.
func localTimeAnnotation(start time.Time, timezone string) string {
	if timezone == "" {
		return ""
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		slog.Warn("unknown timezone on event, skipping annotation", "timezone", timezone)
		return ""
	}
	return fmt.Sprintf("Local time: %s (%s)", start.In(loc).Format("Mon, 02 Jan 2006 15:04"), timezone)
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", value)
}
