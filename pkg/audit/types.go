package audit

import (
	"encoding/json"
	"time"
)

// Level is the ordinal severity of a log entry (1 is most severe).
type Level int

const (
	LevelCritical Level = 1
	LevelWarning  Level = 2
	LevelNotice   Level = 3
	LevelInfo     Level = 4
)

// TriageStatus is the administrative read/unread marker on an entry. It is the
// only field permitted to change after an entry is written, and it is a
// separate concern from the immutable event record itself.
type TriageStatus string

const (
	TriageUnread TriageStatus = "UNREADED"
	TriageRead   TriageStatus = "READED"
)

// timeFormat renders entry timestamps for display surfaces.
const timeFormat = "2006-01-02 15:04:05"

// Entry is a single append-only audit record. Once written, every field
// except Status is immutable; the id is assigned at write time and defines
// the canonical ordering.
type Entry struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Message       string       `json:"message"`
	Time          *time.Time   `json:"time,omitempty"`
	Level         Level        `json:"level"`
	UserID        *int64       `json:"user_id,omitempty"`
	IPAddress     string       `json:"ip_address,omitempty"`
	UserAgent     string       `json:"user_agent,omitempty"`
	RequestURI    string       `json:"request_uri,omitempty"`
	RequestMethod string       `json:"request_method,omitempty"`
	Status        TriageStatus `json:"status"`
}

// FormattedTime renders the entry time, or "N/A" when it was never recorded.
func (e *Entry) FormattedTime() string {
	if e.Time == nil {
		return "N/A"
	}
	return e.Time.Format(timeFormat)
}

// ToJSON serializes the entry.
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntryWithIdentity is the denormalized row produced by the identity-enriched
// query path. Username is empty when the referenced account is missing or was
// deleted; that is never an error.
type EntryWithIdentity struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Message   string     `json:"message"`
	Time      *time.Time `json:"time,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	Username  string     `json:"username,omitempty"`
}
