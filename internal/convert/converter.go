// Package convert turns v2 telemetry records into canonical v3 events.
//
// A source record is classified by its eid and handed to one of four rules.
// Most tags map one-to-one and keep their eid. GE_INTERACT, CE_START,
// GE_GENIE_START and GE_START fan out into several v3 events whose order is
// fixed, because consumers rebuild session sequence from it:
//
//	GE_INTERACT (subtype "show")  IMPRESSION, LOG, INTERACT
//	GE_INTERACT (otherwise)       INTERACT
//	CE_START                      START, IMPRESSION
//	GE_GENIE_START, GE_START      START [, EXDATA when edata.dspec.mdata exists]
package convert

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

// midNamespace seeds the name-based UUIDs used as v3 message ids.
var midNamespace = uuid.MustParse("6f1c2b1e-8d7a-4c1b-9a57-3e0b9a1d2c40")

type rule func(c *converter, source string) ([]*Event, error)

var rules = map[string]rule{
	"GE_INTERACT":    interactFanout,
	"CE_START":       ceStartFanout,
	"GE_GENIE_START": genieStartFanout,
	"GE_START":       genieStartFanout,
}

// Convert converts one v2 record. The source map is only read; every returned
// event owns fresh copies of whatever it took from the source.
func Convert(source value.Map) ([]*Event, error) {
	src := telemetry.NewReader(source)
	eid, err := telemetry.MustRead[string](src, "eid")
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	c := &converter{src: src, payloads: NewPayloadMapper(src)}
	r, ok := rules[eid]
	if !ok {
		r = identity
	}
	events, err := r(c, eid)
	if err != nil {
		return nil, &ConversionError{Eid: eid, Err: err}
	}
	return events, nil
}

type converter struct {
	src      *telemetry.Reader
	payloads *PayloadMapper
	emitted  int
}

func identity(c *converter, source string) ([]*Event, error) {
	return []*Event{c.event(source, source)}, nil
}

func interactFanout(c *converter, source string) ([]*Event, error) {
	var events []*Event
	subtype := telemetry.Read[string](c.src, "edata.eks.subtype")
	if !subtype.IsNull() && strings.ToLower(subtype.Value()) == "show" {
		events = append(events,
			c.event(EidImpression, source),
			c.event(EidLog, source),
		)
	}
	return append(events, c.event(EidInteract, source)), nil
}

func ceStartFanout(c *converter, source string) ([]*Event, error) {
	return []*Event{
		c.event(EidStart, source),
		c.event(EidImpression, source),
	}, nil
}

func genieStartFanout(c *converter, source string) ([]*Event, error) {
	events := []*Event{c.event(EidStart, source)}
	dspec := telemetry.Read[value.Map](c.src, "edata.dspec")
	if !dspec.IsNull() {
		if _, ok := dspec.Value()["mdata"]; ok {
			events = append(events, c.event(EidExdata, source))
		}
	}
	return events, nil
}

// event builds one v3 event with its envelope, payload and tags.
func (c *converter) event(eid, source string) *Event {
	e := newEvent()
	e.SetEid(eid)
	e.r.Write("ver", value.String(Version))
	e.r.Write("mid", value.String(c.mid(eid)))
	for _, key := range []string{"ets", "syncts"} {
		if v, ok := c.src.Lookup(key); ok {
			e.r.Write(key, v.Clone())
		}
	}
	e.r.Write("actor", value.Object(value.Map{
		"id":   value.String(telemetry.Read[string](c.src, "uid").Value()),
		"type": value.String("User"),
	}))
	e.r.Write("context", value.Object(c.context(source)))
	if id := telemetry.Read[string](c.src, "gdata.id"); !id.IsNull() {
		e.r.Write("object", value.Object(value.Map{
			"id":   value.String(id.Value()),
			"ver":  value.String(telemetry.Read[string](c.src, "gdata.ver").Value()),
			"type": value.String("Content"),
		}))
	}
	e.r.Write("metadata.source_eid", value.String(source))
	e.SetEdata(c.payloads.Payload(eid, source))
	e.SetTags(c.src)
	return e
}

func (c *converter) context(source string) value.Map {
	env := Category(source)
	if env == CategoryUnknown {
		env = "telemetry"
	}
	ctx := value.Map{
		"channel": value.String(telemetry.Read[string](c.src, "channel").ValueOr("in.ekstep")),
		"env":     value.String(env),
	}
	for _, key := range []string{"sid", "did", "pdata", "cdata"} {
		if v, ok := c.src.Lookup(key); ok {
			ctx[key] = v.Clone()
		}
	}
	return ctx
}

// mid derives a stable id from the source mid, or from the source content
// when the source has none, plus the event's position in the fan-out.
func (c *converter) mid(eid string) string {
	seed := telemetry.Read[string](c.src, "mid").Value()
	if seed == "" {
		b, err := value.Object(c.src.Map()).MarshalJSON()
		if err == nil {
			seed = string(b)
		}
	}
	c.emitted++
	name := seed + "|" + eid + "|" + strconv.Itoa(c.emitted)
	return uuid.NewSHA1(midNamespace, []byte(name)).String()
}
