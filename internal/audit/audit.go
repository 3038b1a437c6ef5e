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

// Package audit holds the activity log: an append-only record of domain events.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeProjectCreated       = "created_project"
	TypeProjectStatusUpdated = "updated_project_status"
	TypeProjectApproved      = "project_approved"
	TypeRevisionRequested    = "revision_requested"
	TypeCommentAdded         = "comment_added"
	TypeOrganizationCreated  = "organization_created"
	TypeBillingUpdated       = "updated_billing"
	TypeBillingSynced        = "billing_status_synced"
	TypeMemberAdded          = "member_added"
	TypeAccessDenied         = "access_denied"
	TypeWebhookRejected      = "webhook_rejected"
)

// ActorSystem is the actor id recorded for provider-driven changes.
const ActorSystem = "system"

// Event represents an auditable action
type Event struct {
	ID             string
	Type           string
	OrganizationID string
	ActorID        string
	Resource       string
	Metadata       map[string]any
	Timestamp      time.Time
}

// Sink persists activity events. Implementations bound to a transaction must
// commit or roll back together with the state change they describe.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Logger emits best-effort audit lines that are not part of a transaction,
// such as rejected requests.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("organization_id", event.OrganizationID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	key = strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "authorization", "hash", "credential"}
	for _, s := range secrets {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
