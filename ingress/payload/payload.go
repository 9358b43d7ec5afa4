package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// eventTypePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var eventTypePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// EventTypeFormResponse is the event type Typeform sends on form submission
const EventTypeFormResponse = "form_response"

// Envelope represents the outer structure of a Typeform webhook payload.
// Only identifying fields are modeled; the response answers stay opaque.
type Envelope struct {
	// EventID uniquely identifies the delivery on the provider side
	EventID string `json:"event_id"`

	// EventType is a full-stop delimited type associated with the event
	// Examples: "form_response", "form_response.partial"
	EventType string `json:"event_type"`

	// FormResponse carries the submission identifiers when present
	FormResponse *FormResponse `json:"form_response,omitempty"`
}

// FormResponse identifies which form and submission produced the event
type FormResponse struct {
	FormID      string    `json:"form_id"`
	Token       string    `json:"token"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Validate validates the envelope structure
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}

	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	if !eventTypePattern.MatchString(e.EventType) {
		return fmt.Errorf("event_type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.EventType)
	}

	if e.EventType == EventTypeFormResponse {
		if e.FormResponse == nil {
			return fmt.Errorf("form_response is required for %s events", EventTypeFormResponse)
		}
		if e.FormResponse.FormID == "" {
			return fmt.Errorf("form_response.form_id is required")
		}
	}

	return nil
}

// FormID returns the form identifier, empty when the event carries none
func (e Envelope) FormID() string {
	if e.FormResponse == nil {
		return ""
	}
	return e.FormResponse.FormID
}

// Redacted returns the envelope's identifying fields for the opt-in payload
// log path. Answers and any respondent data never appear here.
func (e Envelope) Redacted() map[string]string {
	fields := map[string]string{
		"event_id":   e.EventID,
		"event_type": e.EventType,
	}
	if e.FormResponse != nil {
		fields["form_id"] = e.FormResponse.FormID
		if !e.FormResponse.SubmittedAt.IsZero() {
			fields["submitted_at"] = e.FormResponse.SubmittedAt.UTC().Format(time.RFC3339)
		}
	}
	return fields
}

// Parse parses a JSON payload into an Envelope
func Parse(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("unmarshaling envelope: %w", err)
	}

	if err := envelope.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating envelope: %w", err)
	}

	return envelope, nil
}
