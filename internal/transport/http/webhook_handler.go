// Copyright 2026 The Atelier Authors
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

package http

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/billing"
	"github.com/atelierhq/atelier/internal/observability/logger"
)

// PaymentWebhookResponse is returned for every accepted delivery.
type PaymentWebhookResponse struct {
	Received bool   `json:"received"`
	Event    string `json:"event"`
	Outcome  string `json:"outcome"`
	Warning  string `json:"warning,omitempty"`
}

// PaymentWebhook receives payment provider notifications
// @Summary Payment Webhook
// @Description Syncs organization payment status from provider events
// @Tags Billing
// @Accept json
// @Produce json
// @Param X-Webhook-Token header string false "Shared webhook secret"
// @Success 200 {object} PaymentWebhookResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /webhooks/payments [post]
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.config.WebhookSecret == "" {
		slog.WarnContext(ctx, "payment webhook secret not configured, accepting unauthenticated delivery",
			logger.Component("billing"),
			logger.RemoteAddr(getIPAddress(r)),
		)
	} else if !secretMatches(r.Header.Get(h.config.WebhookHeader), h.config.WebhookSecret) {
		h.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeWebhookRejected,
			ActorID:  "anonymous",
			Resource: r.URL.Path,
			Metadata: map[string]any{"ip_address": getIPAddress(r)},
		})
		respondError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	ev, err := billing.ParseEvent(body)
	if err != nil {
		slog.WarnContext(ctx, "rejected payment webhook payload",
			logger.Component("billing"),
			logger.Error(err),
		)
		respondAppError(w, r, apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return
	}

	result, err := h.billing.HandleEvent(ctx, ev)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	resp := PaymentWebhookResponse{
		Received: true,
		Event:    ev.RawType,
		Outcome:  string(result.Outcome),
	}
	if result.Outcome == billing.OutcomeIgnored {
		resp.Warning = result.Reason
	}
	respondJSON(w, http.StatusOK, resp)
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
