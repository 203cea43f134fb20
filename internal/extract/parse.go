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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxlify/mailcal/internal/models"
)

// decodeEvents parses the model's response text into events. Three shapes
// are accepted, in priority order:
//
//  1. a bare array — taken as the events list
//  2. an object with an "events" array — that array is the list
//  3. an object that itself looks like a single event (non-empty title
//     and startDate) — wrapped into a one-element list
//
// Text that is not valid JSON is a hard failure. Valid JSON in any other
// shape degrades silently to zero events.
func decodeEvents(raw string) ([]models.ExtractedEvent, error) {
	trimmed := strings.TrimSpace(raw)

	var probe any
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, fmt.Errorf("parse model response as JSON: %w", err)
	}

	switch probe.(type) {
	case []any:
		var events []models.ExtractedEvent
		if err := json.Unmarshal([]byte(trimmed), &events); err != nil {
			slog.Warn("model returned an array that is not a list of events", "error", err)
			return nil, nil
		}
		return events, nil

	case map[string]any:
		var wrapper struct {
			Events []models.ExtractedEvent `json:"events"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapper); err == nil && wrapper.Events != nil {
			return wrapper.Events, nil
		}

		var single models.ExtractedEvent
		if err := json.Unmarshal([]byte(trimmed), &single); err == nil && single.Title != "" && single.StartDate != "" {
			slog.Warn("model returned a single event object, wrapping into a list", "title", single.Title)
			return []models.ExtractedEvent{single}, nil
		}

		slog.Warn("model response object has no usable events shape")
		return nil, nil

	default:
		// A bare string, number, bool or null parses as JSON but carries
		// no events.
		slog.Warn("model response is valid JSON but not an events shape")
		return nil, nil
	}
}
