package amqp

import (
	"encoding/json"
	"time"
)

// RecordSyncMessage is the lightweight report-sync notification. It
// carries only the record id and the version the write produced; the
// worker reloads the record from the database before exporting it.
type RecordSyncMessage struct {
	RecordID  string    `json:"recordId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordSyncMessage(recordID string, version int64) *RecordSyncMessage {
	return &RecordSyncMessage{
		RecordID:  recordID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
