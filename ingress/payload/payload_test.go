package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("success - form_response event", func(t *testing.T) {
		data := []byte(`{
			"event_id": "LtWXD3crgy",
			"event_type": "form_response",
			"form_response": {
				"form_id": "lT4Z3j",
				"token": "a3a12ec67a1365927098a606107fac15",
				"submitted_at": "2024-01-18T18:17:02Z"
			}
		}`)

		envelope, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "LtWXD3crgy", envelope.EventID)
		assert.Equal(t, EventTypeFormResponse, envelope.EventType)
		assert.Equal(t, "lT4Z3j", envelope.FormID())
		assert.Equal(t, 2024, envelope.FormResponse.SubmittedAt.Year())
	})

	t.Run("success - unknown fields are ignored", func(t *testing.T) {
		data := []byte(`{
			"event_id": "LtWXD3crgy",
			"event_type": "form_response",
			"form_response": {
				"form_id": "lT4Z3j",
				"answers": [{"type": "text", "text": "should stay opaque"}]
			}
		}`)

		envelope, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "lT4Z3j", envelope.FormID())
	})

	t.Run("success - hierarchical event type without form_response", func(t *testing.T) {
		data := []byte(`{
			"event_id": "XyZ123",
			"event_type": "form_response.partial"
		}`)

		envelope, err := Parse(data)
		require.NoError(t, err)
		assert.Equal(t, "form_response.partial", envelope.EventType)
		assert.Empty(t, envelope.FormID())
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{invalid json}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshaling envelope")
	})

	t.Run("error - missing event_id", func(t *testing.T) {
		data := []byte(`{
			"event_type": "form_response",
			"form_response": {"form_id": "lT4Z3j"}
		}`)

		_, err := Parse(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "event_id is required")
	})

	t.Run("error - missing event_type", func(t *testing.T) {
		data := []byte(`{"event_id": "LtWXD3crgy"}`)

		_, err := Parse(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "event_type is required")
	})

	t.Run("error - invalid event_type format", func(t *testing.T) {
		data := []byte(`{
			"event_id": "LtWXD3crgy",
			"event_type": "form-response!"
		}`)

		_, err := Parse(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hierarchical")
	})

	t.Run("error - form_response event without body", func(t *testing.T) {
		data := []byte(`{
			"event_id": "LtWXD3crgy",
			"event_type": "form_response"
		}`)

		_, err := Parse(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "form_response is required")
	})

	t.Run("error - form_response without form_id", func(t *testing.T) {
		data := []byte(`{
			"event_id": "LtWXD3crgy",
			"event_type": "form_response",
			"form_response": {"token": "abc"}
		}`)

		_, err := Parse(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "form_id is required")
	})
}

func TestValidate(t *testing.T) {
	t.Run("success - complete envelope", func(t *testing.T) {
		envelope := Envelope{
			EventID:   "LtWXD3crgy",
			EventType: EventTypeFormResponse,
			FormResponse: &FormResponse{
				FormID: "lT4Z3j",
			},
		}

		require.NoError(t, envelope.Validate())
	})

	t.Run("error - double periods in event_type", func(t *testing.T) {
		envelope := Envelope{EventID: "x", EventType: "form..response"}
		require.Error(t, envelope.Validate())
	})

	t.Run("error - leading period in event_type", func(t *testing.T) {
		envelope := Envelope{EventID: "x", EventType: ".form_response"}
		require.Error(t, envelope.Validate())
	})
}

func TestRedacted(t *testing.T) {
	t.Run("includes identifiers only", func(t *testing.T) {
		envelope := Envelope{
			EventID:   "LtWXD3crgy",
			EventType: EventTypeFormResponse,
			FormResponse: &FormResponse{
				FormID:      "lT4Z3j",
				Token:       "a3a12ec67a1365927098a606107fac15",
				SubmittedAt: time.Date(2024, 1, 18, 18, 17, 2, 0, time.UTC),
			},
		}

		fields := envelope.Redacted()
		assert.Equal(t, "LtWXD3crgy", fields["event_id"])
		assert.Equal(t, "form_response", fields["event_type"])
		assert.Equal(t, "lT4Z3j", fields["form_id"])
		assert.Equal(t, "2024-01-18T18:17:02Z", fields["submitted_at"])
		assert.NotContains(t, fields, "token")
		assert.NotContains(t, fields, "answers")
	})

	t.Run("omits form fields when absent", func(t *testing.T) {
		envelope := Envelope{EventID: "x", EventType: "form_response.partial"}

		fields := envelope.Redacted()
		assert.NotContains(t, fields, "form_id")
		assert.NotContains(t, fields, "submitted_at")
	})
}
