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

// Package pipeline sequences the stages that turn one inbound email into a
// calendar attachment: prepare content, extract events, encode the
// calendar, notify the sender. It owns the status record lifecycle:
// created once as pending, then moved through exactly one terminal
// transition per email.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxlify/mailcal/internal/ics"
	"github.com/voxlify/mailcal/internal/metrics"
	"github.com/voxlify/mailcal/internal/models"
	"github.com/voxlify/mailcal/internal/prepare"
	"github.com/voxlify/mailcal/internal/store"
)

// RecordStore is the status record persistence surface the coordinator
// needs. *store.RecordStore implements it.
type RecordStore interface {
	Set(ctx context.Context, rec *models.StatusRecord) error
	Get(ctx context.Context, id string) (*models.StatusRecord, error)
	Patch(ctx context.Context, id string, patch models.RecordPatch) (*models.StatusRecord, error)
	FirstDelivery(ctx context.Context, messageID string) (bool, error)
}

// Extractor obtains events from prepared content. *extract.Orchestrator
// implements it.
type Extractor interface {
	Extract(ctx context.Context, subject string, content models.PreparedContent) ([]models.ExtractedEvent, error)
}

// Notifier sends the response email. *notify.Client implements it.
type Notifier interface {
	SendEventMail(ctx context.Context, to, subject, htmlBody, icsContent string) (string, error)
}

// Coordinator runs the processing pipeline for inbound emails. Invocations
// for distinct emails are independent; within one invocation the stages run
// strictly sequentially.
type Coordinator struct {
	store     RecordStore
	extractor Extractor
	notifier  Notifier
	metrics   *metrics.Metrics

	// Seams for tests.
	encode func([]models.ExtractedEvent) (string, error)
	now    func() time.Time
	newID  func() string
}

// New creates a pipeline coordinator.
func New(recordStore RecordStore, extractor Extractor, notifier Notifier, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		store:     recordStore,
		extractor: extractor,
		notifier:  notifier,
		metrics:   m,
		encode:    ics.Encode,
		now:       time.Now,
		newID:     func() string { return "evt_" + uuid.New().String() },
	}
}

// Process runs the full pipeline for one inbound email and returns the
// terminal record, or nil when processing was skipped or could not start.
// It never returns an error and never panics outward: any stage failure is
// captured into the record's error status. The caller (the webhook layer)
// only needs a best-effort result.
func (c *Coordinator) Process(ctx context.Context, email *models.InboundEmail) *models.StatusRecord {
	from := email.SenderAddress()
	if from == "" {
		slog.Error("no sender address in inbound payload, skipping", "message_id", email.MessageID)
		return nil
	}

	if email.MessageID != "" {
		first, err := c.store.FirstDelivery(ctx, email.MessageID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !first {
			slog.Info("skipping re-delivered webhook payload", "message_id", email.MessageID)
			return nil
		}
	}

	id := c.newID()
	slog.Info("processing inbound email", "id", id, "from", from, "subject", email.Subject)

	receivedAt := email.Date
	if receivedAt == "" {
		receivedAt = c.timestamp()
	}

	rec := &models.StatusRecord{
		ID:        id,
		UserEmail: from,
		OriginalEmail: models.OriginalEmail{
			From:       from,
			Subject:    email.Subject,
			TextBody:   email.TextBody,
			HtmlBody:   email.HtmlBody,
			ReceivedAt: receivedAt,
			MessageID:  email.MessageID,
		},
		ExtractedEvents: []models.ExtractedEvent{},
		Status:          models.StatusPending,
		CreatedAt:       c.timestamp(),
	}

	// The one unrecoverable precondition: without the initial record there
	// is nothing to track progress against.
	if err := c.store.Set(ctx, rec); err != nil {
		slog.Error("failed to store initial record, aborting", "id", id, "error", err)
		return nil
	}

	final, err := c.run(ctx, rec, email)
	if err != nil {
		slog.Error("pipeline stage failed", "id", id, "error", err)
		return c.finalize(ctx, rec, errorPatch(models.StatusError, err.Error(), c.timestamp()))
	}
	return final
}

// run executes the stages after the pending record exists. A returned error
// means the email ends in the error status; panics are converted into that
// same path.
func (c *Coordinator) run(ctx context.Context, rec *models.StatusRecord, email *models.InboundEmail) (_ *models.StatusRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()

	content := prepare.Build(email)

	events, err := c.extractor.Extract(ctx, email.Subject, content)
	if err != nil {
		return nil, fmt.Errorf("extract events: %w", err)
	}

	processedAt := c.timestamp()

	if len(events) == 0 {
		slog.Info("no events extracted", "id", rec.ID)
		empty := []models.ExtractedEvent{}
		status := models.StatusNoEvents
		return c.finalize(ctx, rec, models.RecordPatch{
			Status:          &status,
			ExtractedEvents: &empty,
			ProcessedAt:     &processedAt,
		}), nil
	}

	slog.Info("events extracted", "id", rec.ID, "count", len(events))

	doc, err := c.encode(events)
	if err != nil {
		return nil, fmt.Errorf("generate calendar: %w", err)
	}

	if doc == "" {
		slog.Warn("calendar generation produced no document", "id", rec.ID)
		status := models.StatusICSError
		errMsg := "ICS generation failed or produced no content"
		return c.finalize(ctx, rec, models.RecordPatch{
			Status:          &status,
			ExtractedEvents: &events,
			ProcessedAt:     &processedAt,
			Error:           &errMsg,
		}), nil
	}

	status := models.StatusProcessed
	final := c.finalize(ctx, rec, models.RecordPatch{
		Status:          &status,
		ExtractedEvents: &events,
		ICSFile:         &doc,
		ProcessedAt:     &processedAt,
	})

	// Notification failure does not roll back the processed status: the
	// calendar was produced, delivery is a separate concern.
	subject := fmt.Sprintf("Calendar Events from %q", subjectOr(email.Subject))
	if _, err := c.notifier.SendEventMail(ctx, rec.UserEmail, subject, renderSummary(email.Subject, events), doc); err != nil {
		slog.Error("failed to send response email", "id", rec.ID, "error", err)
		c.metrics.NotifyFailuresTotal.Inc()
	}

	return final, nil
}

// finalize applies the terminal patch with re-read-before-merge: the store
// re-reads the record so concurrent fields are not clobbered. If the record
// is unexpectedly absent, a minimal record is reconstructed from in-memory
// state rather than failing.
func (c *Coordinator) finalize(ctx context.Context, base *models.StatusRecord, patch models.RecordPatch) *models.StatusRecord {
	updated, err := c.store.Patch(ctx, base.ID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Error("record missing at merge time, reconstructing", "id", base.ID)
			base.Apply(patch)
			if serr := c.store.Set(ctx, base); serr != nil {
				slog.Error("failed to store reconstructed record", "id", base.ID, "error", serr)
			}
			updated = base
		} else {
			// Best effort: report the merged in-memory view even though
			// persistence failed.
			slog.Error("failed to persist terminal status", "id", base.ID, "error", err)
			base.Apply(patch)
			updated = base
		}
	}

	c.metrics.EmailsTotal.WithLabelValues(string(updated.Status)).Inc()
	slog.Info("pipeline finished", "id", updated.ID, "status", updated.Status)
	return updated
}

func errorPatch(status models.Status, msg, processedAt string) models.RecordPatch {
	return models.RecordPatch{
		Status:      &status,
		Error:       &msg,
		ProcessedAt: &processedAt,
	}
}

func (c *Coordinator) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

func subjectOr(subject string) string {
	if subject == "" {
		return "your email"
	}
	return subject
}

// renderSummary builds the HTML body of the response email: one list item
// per event with its title and localized start/end times.
func renderSummary(subject string, events []models.ExtractedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hello,</p><p>We've processed your email %q and found the following event(s):</p><ul>",
		subjectOr(subject))
	for _, event := range events {
		fmt.Fprintf(&b, "<li><b>%s</b>: %s - %s</li>",
			html.EscapeString(event.Title),
			html.EscapeString(renderEventTime(event.StartDate, event.Timezone)),
			html.EscapeString(renderEventTime(event.EndDate, event.Timezone)),
		)
	}
	b.WriteString("</ul><p>Please find the .ics calendar file attached.</p><p>Thank you!</p>")
	return b.String()
}

// renderEventTime formats an instant in the event's timezone when one is
// known, falling back to the raw value when it cannot be parsed.
func renderEventTime(value, timezone string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	if timezone != "" {
		if loc, lerr := time.LoadLocation(timezone); lerr == nil {
			t = t.In(loc)
		}
	}
	return t.Format("Mon, 02 Jan 2006 15:04 MST")
}
