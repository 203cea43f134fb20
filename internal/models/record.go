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

package models

// Status is the terminal-or-pending state of one status record.
type Status string

const (
	// StatusPending — record created, no stage complete yet.
	StatusPending Status = "pending"
	// StatusProcessed — events extracted, calendar generated, notification attempted.
	StatusProcessed Status = "processed"
	// StatusNoEvents — extraction ran and returned zero events.
	StatusNoEvents Status = "processed_no_events"
	// StatusICSError — events extracted but calendar encoding produced nothing usable.
	StatusICSError Status = "error_ics_generation"
	// StatusError — a stage failed outright.
	StatusError Status = "error"
)

// ExtractedEvent is one calendar event as produced by the extraction stage.
// StartDate and EndDate are ISO 8601 instants as returned by the model;
// validation happens at encoding time, not here.
type ExtractedEvent struct {
	Title       string `json:"title"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// OriginalEmail is the denormalized copy of the inbound email's
// user-facing fields kept on the status record.
type OriginalEmail struct {
	From       string `json:"from"`
	Subject    string `json:"subject,omitempty"`
	TextBody   string `json:"textBody,omitempty"`
	HtmlBody   string `json:"htmlBody,omitempty"`
	ReceivedAt string `json:"receivedAt"`
	MessageID  string `json:"messageId,omitempty"`
}

// StatusRecord is the persisted, mutable progress/result object for one
// inbound email. Exactly one exists per email; the ID is the sole key
// into the store. Invariants:
//
//   - ExtractedEvents is non-empty iff Status is processed or
//     error_ics_generation.
//   - ICSFile is non-empty iff Status is processed.
type StatusRecord struct {
	ID              string           `json:"id"`
	UserEmail       string           `json:"userEmail"`
	OriginalEmail   OriginalEmail    `json:"originalEmail"`
	ExtractedEvents []ExtractedEvent `json:"extractedEvents"`
	ICSFile         string           `json:"icsFile,omitempty"`
	Status          Status           `json:"status"`
	CreatedAt       string           `json:"createdAt"`
	ProcessedAt     string           `json:"processedAt,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// RecordPatch is a partial update to a StatusRecord. Nil fields are left
// untouched by Apply; set fields overwrite. Merge semantics, never a
// wholesale replace.
type RecordPatch struct {
	Status          *Status
	ExtractedEvents *[]ExtractedEvent
	ICSFile         *string
	ProcessedAt     *string
	Error           *string
}

// Apply merges the patch into the record in place.
func (r *StatusRecord) Apply(p RecordPatch) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ExtractedEvents != nil {
		r.ExtractedEvents = *p.ExtractedEvents
	}
	if p.ICSFile != nil {
		r.ICSFile = *p.ICSFile
	}
	if p.ProcessedAt != nil {
		r.ProcessedAt = *p.ProcessedAt
	}
	if p.Error != nil {
		r.Error = *p.Error
	}
}
