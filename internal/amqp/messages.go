package amqp

import (
	"encoding/json"
	"time"
)

// EntrySyncMessage asks the worker to push one local entry to the remote
// store. It carries only identifiers; the worker fetches the current row
// from the local store so late messages never push stale data.
type EntrySyncMessage struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntrySyncMessage(id int64, userID string) *EntrySyncMessage {
	return &EntrySyncMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
