package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted while triaging a scan.
const (
	TypeScanStart      = "scan-start"
	TypeScanFinished   = "scan-finished"
	TypeReportParsed   = "report-parsed"
	TypeReportArchived = "report-archived"
	TypeManifestFound  = "manifest-found"
	TypeTriageFinished = "triage-finished"
)

// Event represents a single NDJSON progress record.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emitter writes NDJSON events to an io.Writer safely across goroutines.
// A nil *Emitter discards everything.
type Emitter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewEmitter returns a new NDJSON emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{writer: w}
}

// Emit serializes the event to JSON and appends a newline.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
