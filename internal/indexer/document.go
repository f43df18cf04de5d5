// Package indexer adapts telemetry records for delivery to a search index.
//
// Delivery outcome is recorded on the record itself under flags.* and
// metadata.es_indexer_*, so a failed or skipped document can be forwarded to
// a dead-letter path as-is.
package indexer

import (
	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

// Status values written by MarkFailed.
const (
	StatusFailed     = "failed"
	StatusIndexError = "index_error"
	StatusSkipped    = "skipped"
)

// Document is a record routed to an index.
type Document struct {
	r *telemetry.Reader
}

// NewDocument wraps m. Annotations are written into m.
func NewDocument(m value.Map) *Document {
	return &Document{r: telemetry.NewReader(m)}
}

func (d *Document) Map() value.Map { return d.r.Map() }

func (d *Document) IndexName() (string, error) {
	return telemetry.MustRead[string](d.r, "metadata.index_name")
}

func (d *Document) IndexType() (string, error) {
	return telemetry.MustRead[string](d.r, "metadata.index_type")
}

func (d *Document) ID() (string, error) {
	return telemetry.MustRead[string](d.r, "mid")
}

// IsIndexable reports whether both index name and type are non-empty strings.
func (d *Document) IsIndexable() bool {
	name := telemetry.Read[string](d.r, "metadata.index_name").Value()
	typ := telemetry.Read[string](d.r, "metadata.index_type").Value()
	return name != "" && typ != ""
}

// MarkFailed records a delivery failure. Repeated calls overwrite the
// previous status and error.
func (d *Document) MarkFailed(status, errorMessage string) {
	d.r.WriteIfAbsent("flags", value.Object(nil))
	d.r.Write("flags.es_indexer_processed", value.Bool(false))

	d.r.WriteIfAbsent("metadata", value.Object(nil))
	d.r.Write("metadata.es_indexer_status", value.String(status))
	d.r.Write("metadata.es_indexer_error", value.String(errorMessage))
}

func (d *Document) MarkSkipped() {
	d.r.WriteIfAbsent("flags", value.Object(nil))
	d.r.Write("flags.es_indexer_skipped", value.Bool(true))
}

// Status returns the recorded delivery status, or "" if none.
func (d *Document) Status() string {
	return telemetry.Read[string](d.r, "metadata.es_indexer_status").Value()
}

// JSON renders the document deterministically: map keys sorted and whole
// numbers in plain decimal form.
func (d *Document) JSON() ([]byte, error) {
	return value.Object(d.r.Map()).MarshalJSON()
}
