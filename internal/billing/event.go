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

// Package billing keeps organization payment state in sync with events
// delivered by the payment provider.
//
// Every applied event is a pure overwrite of the organization's payment
// fields, so redelivering an event converges to the same state. Events are
// not ordered: the last one delivered wins.
package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidEvent = errors.New("invalid billing event")

// Event types after normalization.
const (
	EventConfirmed = "CONFIRMED"
	EventReceived  = "RECEIVED"
	EventOverdue   = "OVERDUE"
	EventRefunded  = "REFUNDED"
	EventDeleted   = "DELETED"
)

// Event is a decoded provider notification.
type Event struct {
	// Type is the normalized event type, e.g. CONFIRMED.
	Type string
	// RawType is the type exactly as delivered, e.g. PAYMENT_CONFIRMED.
	RawType string
	Payment Payment
}

// Payment is the payment the event refers to.
type Payment struct {
	ID            string
	Customer      string
	Value         float64
	Status        string
	DueDate       *time.Time
	ConfirmedDate *time.Time
}

type wireEvent struct {
	Event   string       `json:"event"`
	Payment *wirePayment `json:"payment"`
}

type wirePayment struct {
	ID            string   `json:"id"`
	Customer      string   `json:"customer"`
	Value         *float64 `json:"value"`
	Status        string   `json:"status"`
	DueDate       string   `json:"dueDate"`
	ConfirmedDate string   `json:"confirmedDate"`
}

// ParseEvent decodes a webhook body. Unknown fields are ignored since the
// provider sends far more than the sync needs.
func ParseEvent(body []byte) (Event, error) {
	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&w); err != nil {
		return Event{}, fmt.Errorf("%w: malformed JSON: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(w.Event) == "" {
		return Event{}, fmt.Errorf("%w: missing event", ErrInvalidEvent)
	}
	if w.Payment == nil {
		return Event{}, fmt.Errorf("%w: missing payment", ErrInvalidEvent)
	}
	if strings.TrimSpace(w.Payment.Customer) == "" {
		return Event{}, fmt.Errorf("%w: missing payment.customer", ErrInvalidEvent)
	}

	ev := Event{
		Type:    NormalizeType(w.Event),
		RawType: w.Event,
		Payment: Payment{
			ID:       w.Payment.ID,
			Customer: strings.TrimSpace(w.Payment.Customer),
			Status:   w.Payment.Status,
		},
	}
	if w.Payment.Value != nil {
		ev.Payment.Value = *w.Payment.Value
	}

	var err error
	if ev.Payment.DueDate, err = parseDate(w.Payment.DueDate); err != nil {
		return Event{}, fmt.Errorf("%w: dueDate: %v", ErrInvalidEvent, err)
	}
	if ev.Payment.ConfirmedDate, err = parseDate(w.Payment.ConfirmedDate); err != nil {
		return Event{}, fmt.Errorf("%w: confirmedDate: %v", ErrInvalidEvent, err)
	}
	return ev, nil
}

// NormalizeType upper-cases t and strips the provider's PAYMENT_ prefix.
func NormalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	return strings.TrimPrefix(t, "PAYMENT_")
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	t = t.UTC()
	return &t, nil
}
