package convert

import (
	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

// Canonical v3 event tags produced by the fan-out rules.
const (
	EidStart      = "START"
	EidEnd        = "END"
	EidImpression = "IMPRESSION"
	EidInteract   = "INTERACT"
	EidLog        = "LOG"
	EidExdata     = "EXDATA"
)

// Version is written to the ver field of every converted event.
const Version = "3.0"

// Event is one canonical v3 record. It owns its backing map.
type Event struct {
	r *telemetry.Reader
}

func newEvent() *Event {
	return &Event{r: telemetry.NewReader(value.Map{})}
}

// Reader exposes the event for path-addressed access.
func (e *Event) Reader() *telemetry.Reader { return e.r }

// Map returns the backing map.
func (e *Event) Map() value.Map { return e.r.Map() }

func (e *Event) Eid() string {
	return telemetry.Read[string](e.r, "eid").Value()
}

func (e *Event) SetEid(eid string) {
	e.r.Write("eid", value.String(eid))
}

func (e *Event) Mid() string {
	return telemetry.Read[string](e.r, "mid").Value()
}

func (e *Event) Edata() value.Map {
	return telemetry.Read[value.Map](e.r, "edata").Value()
}

func (e *Event) SetEdata(edata value.Map) {
	e.r.Write("edata", value.Object(edata))
}

func (e *Event) Tags() value.Value {
	v, _ := e.r.Lookup("tags")
	return v
}

// SetTags copies the source record's tags verbatim. A source without tags
// yields an empty map.
func (e *Event) SetTags(src *telemetry.Reader) {
	tags, ok := src.Lookup("tags")
	if !ok {
		e.r.Write("tags", value.Object(nil))
		return
	}
	e.r.Write("tags", tags.Clone())
}

// Value returns the event as a map value sharing the backing map.
func (e *Event) Value() value.Value { return value.Object(e.r.Map()) }

func (e *Event) MarshalJSON() ([]byte, error) {
	return e.Value().MarshalJSON()
}
