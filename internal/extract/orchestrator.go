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

// Package extract turns prepared email content into calendar events by
// issuing a single chat completion call against an OpenAI-compatible API
// and decoding the loosely structured response.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxlify/mailcal/internal/metrics"
	"github.com/voxlify/mailcal/internal/models"
)

const (
	defaultTextModel   = "gpt-4o-mini"
	defaultVisionModel = "gpt-4o"

	// Deprecated model names still seen in old deployments. A configured
	// name equal to one of these is replaced by the default for its mode.
	placeholderTextModel   = "gpt-3.5-turbo-16k"
	placeholderVisionModel = "gpt-4-vision-preview"

	// maxResponseTokens is the output-token ceiling per call.
	maxResponseTokens = 4096

	// extractionTemperature keeps the output near-deterministic for
	// structured extraction.
	extractionTemperature = 0.1
)

// Orchestrator selects model and mode, issues the one model call per email
// under a timeout, and parses the response into events.
type Orchestrator struct {
	client      *Client
	textModel   string
	visionModel string
	timeout     time.Duration
	metrics     *metrics.Metrics

	now func() time.Time
}

// NewOrchestrator creates an extraction orchestrator. Empty or placeholder
// model names fall back to the mode's default.
func NewOrchestrator(client *Client, textModel, visionModel string, timeout time.Duration, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		client:      client,
		textModel:   resolveModel(textModel, placeholderTextModel, defaultTextModel),
		visionModel: resolveModel(visionModel, placeholderVisionModel, defaultVisionModel),
		timeout:     timeout,
		metrics:     m,
		now:         time.Now,
	}
}

// Extract obtains zero or more events from prepared content. Exactly one
// model call is issued, even for empty input. Transport errors, non-2xx
// responses, the timeout, and unparseable JSON all fail the stage; a
// response in an unexpected-but-parseable shape degrades to zero events.
func (o *Orchestrator) Extract(ctx context.Context, subject string, content models.PreparedContent) ([]models.ExtractedEvent, error) {
	mode := "text"
	model := o.textModel
	var messages []ChatMessage

	if len(content.Images) > 0 {
		mode = "vision"
		model = o.visionModel
		messages = buildVisionMessages(o.now(), subject, content)
	} else {
		messages = buildTextMessages(o.now(), subject, content.Text)
	}

	req := &ChatRequest{
		Model:          model,
		Messages:       messages,
		MaxTokens:      maxResponseTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if !omitsTemperature(model) {
		temp := extractionTemperature
		req.Temperature = &temp
	}

	slog.Info("issuing extraction call",
		"model", model,
		"mode", mode,
		"images", len(content.Images),
	)

	start := time.Now()
	resp, err := o.call(ctx, req)
	o.metrics.ExtractionSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	o.metrics.ModelTokensTotal.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	o.metrics.ModelTokensTotal.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		slog.Warn("model response has no choices", "response_id", resp.ID)
		return nil, nil
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		// Some models put a refusal in a separate field instead.
		text = resp.Choices[0].Message.Refusal
	}
	if text == "" {
		slog.Warn("model response content is empty", "response_id", resp.ID)
		return nil, nil
	}

	events, err := decodeEvents(text)
	if err != nil {
		return nil, err
	}

	slog.Info("extraction finished",
		"model", resp.Model,
		"events", len(events),
		"finish_reason", resp.Choices[0].FinishReason,
	)

	return events, nil
}

// call races the model request against the configured timeout. If the timer
// wins, the stage fails but the in-flight call is not cancelled; it is left
// to settle on its own and its result is discarded.
func (o *Orchestrator) call(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	type callResult struct {
		resp *ChatResponse
		err  error
	}

	// Buffered so the abandoned goroutine can deliver and exit after a
	// timeout instead of blocking forever.
	ch := make(chan callResult, 1)

	go func() {
		resp, err := o.client.CreateChatCompletion(context.WithoutCancel(ctx), req)
		ch <- callResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-timer.C:
		slog.Error("model call timed out, abandoning", "model", req.Model, "timeout", o.timeout)
		return nil, fmt.Errorf("model call timed out after %s", o.timeout)
	}
}

// resolveModel substitutes the fallback for an empty or known-unreliable
// configured model name.
func resolveModel(configured, placeholder, fallback string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" || configured == placeholder {
		return fallback
	}
	return configured
}

// omitsTemperature reports whether the model family rejects the temperature
// parameter. Reasoning-family names start with an "o" generation marker.
func omitsTemperature(model string) bool {
	for _, family := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(model, family) {
			return true
		}
	}
	return false
}
