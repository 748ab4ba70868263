package amqp

import (
	"encoding/json"
	"time"
)

// Change kinds carried by report change messages.
const (
	ChangeItemWritten   = "item_written"
	ChangeItemDeleted   = "item_deleted"
	ChangeReportDeleted = "report_deleted"
)

// ReportChangedMessage signals that a report's items were modified and its
// cash-flow snapshot should be recomputed. It carries only identifiers; the
// worker reads the current state from the database.
type ReportChangedMessage struct {
	ReportID  int64     `json:"report_id"`
	Change    string    `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportChangedMessage creates a change message for a report.
func NewReportChangedMessage(reportID int64, change string) *ReportChangedMessage {
	return &ReportChangedMessage{
		ReportID:  reportID,
		Change:    change,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ReportChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportChangedMessageFromJSON creates a message from JSON bytes.
func ReportChangedMessageFromJSON(data []byte) (*ReportChangedMessage, error) {
	var msg ReportChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
