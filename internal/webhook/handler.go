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

// Package webhook serves the HTTP surface: the inbound email webhook, the
// per-sender record listing, health, and metrics. The webhook acknowledges
// fast and runs the pipeline in the background; the mail provider's
// delivery timeout is independent of how long processing takes.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxlify/mailcal/internal/models"
)

// Processor runs the pipeline for one inbound email.
// *pipeline.Coordinator implements it.
type Processor interface {
	Process(ctx context.Context, email *models.InboundEmail) *models.StatusRecord
}

// Lister reads status records for the listing endpoint.
// *store.RecordStore implements it.
type Lister interface {
	ListByEmail(ctx context.Context, email string) ([]*models.StatusRecord, error)
	Ping(ctx context.Context) error
}

// Handler serves the HTTP endpoints.
type Handler struct {
	processor Processor
	records   Lister
}

// NewHandler creates the HTTP handler.
func NewHandler(processor Processor, records Lister) *Handler {
	return &Handler{
		processor: processor,
		records:   records,
	}
}

// ServeInbound handles inbound email webhook requests.
//
//   - The provider POSTs a JSON payload for each received email
//   - We respond 200 immediately — the provider expects a fast response
//   - The pipeline runs in the background; its completion may race with,
//     precede, or follow this acknowledgment
func (h *Handler) ServeInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload models.InboundEmail
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("inbound webhook body not valid JSON", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	slog.Info("inbound webhook received",
		"from", payload.SenderAddress(),
		"subject", payload.Subject,
		"attachments", len(payload.Attachments),
	)

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})

	// Process in background
	go func() {
		if rec := h.processor.Process(context.Background(), &payload); rec != nil {
			slog.Info("background processing finished", "id", rec.ID, "status", rec.Status)
		}
	}()
}

// ServeEvents handles record listing requests: GET /events?email=<sender>.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email query parameter is required"})
		return
	}

	records, err := h.records.ListByEmail(r.Context(), email)
	if err != nil {
		slog.Error("failed to list records", "email", email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing failed"})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// ServeHealth reports readiness based on the store connection.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Ping(r.Context()); err != nil {
		http.Error(w, "store unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Serve starts the HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", handler.ServeInbound)
	mux.HandleFunc("/events", handler.ServeEvents)
	mux.HandleFunc("/health", handler.ServeHealth)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
