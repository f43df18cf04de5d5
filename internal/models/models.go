package models

import "github.com/vincentbai/telemetry-converter/internal/value"

// Batch is the ingest request body: raw v2 records.
type Batch struct {
	Events []value.Value `json:"events"`
}

// RecordError describes one record that failed conversion.
type RecordError struct {
	Index int    `json:"index"`
	Mid   string `json:"mid,omitempty"`
	Error string `json:"error"`
}

// Result summarizes one processed batch.
type Result struct {
	Received    int           `json:"received"`
	Converted   int           `json:"converted"`    // canonical events produced
	Indexed     int           `json:"indexed"`      // canonical events accepted by the sink
	Skipped     int           `json:"skipped"`      // canonical events without a destination
	Failed      int           `json:"failed"`       // source records that failed conversion
	IndexFailed int           `json:"index_failed"` // canonical events rejected by the sink
	Errors      []RecordError `json:"errors,omitempty"`
	Events      []value.Value `json:"events,omitempty"` // routed canonical events in emission order, without delivery annotations
}
