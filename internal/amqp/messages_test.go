package amqp

import (
	"testing"
	"time"
)

func TestEntrySyncMessage_JSONRoundTrip(t *testing.T) {
	msg := NewEntrySyncMessage(42, "user-1")

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	got, err := EntrySyncMessageFromJSON(data)
	if err != nil {
		t.Fatalf("EntrySyncMessageFromJSON() error = %v", err)
	}

	if got.ID != 42 || got.UserID != "user-1" {
		t.Errorf("round trip = (%d, %q), want (42, user-1)", got.ID, got.UserID)
	}
	if got.Timestamp.IsZero() {
		t.Error("round trip lost the timestamp")
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp = %v, want recent", got.Timestamp)
	}
}

func TestEntrySyncMessageFromJSON_Invalid(t *testing.T) {
	if _, err := EntrySyncMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("EntrySyncMessageFromJSON() error = nil for malformed payload")
	}
}
