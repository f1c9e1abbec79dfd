// Package eventlog defines the journal record shipped to the storage
// backend and the resume-position contract between the reader and the sink.
package eventlog

import (
	"fmt"
	"time"
)

// Position points at the last journal record known to be stored: the source
// file it came from, the byte offset right after it, and the matching offset
// in the secondary (dictionary) file. The zero value means "nothing stored
// yet, start from the beginning of the first file".
type Position struct {
	FileName       string
	EndPosition    int64
	LgfEndPosition int64
}

// IsZero reports whether no position has been recorded.
func (p Position) IsZero() bool {
	return p.FileName == "" && p.EndPosition == 0 && p.LgfEndPosition == 0
}

// Item is what the storage sink needs from a record type: a timestamp for
// time bucketing, the resume markers, and a stable document identity.
// Everything else about the record is opaque to the sink and is serialized
// as-is.
type Item interface {
	Time() time.Time
	Position() Position
	DocumentID() string
}

// Record is one event-log entry as extracted from the journal. Field names
// in the JSON form match the backend mapping exactly.
type Record struct {
	DateTime            time.Time `json:"dateTime"`
	TransactionDateTime time.Time `json:"transactionDateTime"`
	TransactionStatus   string    `json:"transactionStatus"`
	TransactionNumber   int64     `json:"transactionNumber"`
	Severity            string    `json:"severity"`
	Server              string    `json:"server"`
	Computer            string    `json:"computer"`
	Application         string    `json:"application"`
	Event               string    `json:"event"`
	User                string    `json:"user"`
	UserUUID            string    `json:"userUuid"`
	Connection          int64     `json:"connection"`
	Session             int64     `json:"session"`
	MainPort            int       `json:"mainPort"`
	AddPort             int       `json:"addPort"`
	Metadata            string    `json:"metadata"`
	MetadataUUID        string    `json:"metadataUuid"`
	Data                string    `json:"data"`
	DataPresentation    string    `json:"dataPresentation"`
	Comment             string    `json:"comment"`
	FileName            string    `json:"fileName"`
	EndPosition         int64     `json:"endPosition"`
	LgfEndPosition      int64     `json:"lgfEndPosition"`
}

func (r Record) Time() time.Time { return r.DateTime }

func (r Record) Position() Position {
	return Position{FileName: r.FileName, EndPosition: r.EndPosition, LgfEndPosition: r.LgfEndPosition}
}

// DocumentID derives a deterministic identity from the resume markers, so a
// resubmitted record overwrites its previous copy instead of duplicating it.
func (r Record) DocumentID() string {
	return fmt.Sprintf("%s_%d_%d", r.FileName, r.EndPosition, r.LgfEndPosition)
}
