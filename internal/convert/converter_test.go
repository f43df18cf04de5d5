package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

func parseRecord(t *testing.T, doc string) value.Map {
	t.Helper()
	v, err := value.Parse([]byte(doc))
	require.NoError(t, err)
	m, ok := v.AsMap()
	require.True(t, ok)
	return m
}

func eids(events []*Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Eid()
	}
	return out
}

func TestConvertFanout(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "interact show mixed case",
			doc:  `{"eid":"GE_INTERACT","edata":{"eks":{"subtype":"Show","type":"TOUCH"}}}`,
			want: []string{"IMPRESSION", "LOG", "INTERACT"},
		},
		{
			name: "interact without subtype",
			doc:  `{"eid":"GE_INTERACT","edata":{"eks":{"type":"TOUCH"}}}`,
			want: []string{"INTERACT"},
		},
		{
			name: "interact other subtype",
			doc:  `{"eid":"GE_INTERACT","edata":{"eks":{"subtype":"hide"}}}`,
			want: []string{"INTERACT"},
		},
		{
			name: "interact without edata",
			doc:  `{"eid":"GE_INTERACT"}`,
			want: []string{"INTERACT"},
		},
		{
			name: "ce start",
			doc:  `{"eid":"CE_START","edata":{"eks":{}}}`,
			want: []string{"START", "IMPRESSION"},
		},
		{
			name: "ce start without payload",
			doc:  `{"eid":"CE_START"}`,
			want: []string{"START", "IMPRESSION"},
		},
		{
			name: "ge start with mdata",
			doc:  `{"eid":"GE_START","edata":{"dspec":{"os":"android","mdata":{"id":"x"}}}}`,
			want: []string{"START", "EXDATA"},
		},
		{
			name: "genie start with null mdata key",
			doc:  `{"eid":"GE_GENIE_START","edata":{"dspec":{"mdata":null}}}`,
			want: []string{"START", "EXDATA"},
		},
		{
			name: "ge start without dspec",
			doc:  `{"eid":"GE_START","edata":{"eks":{}}}`,
			want: []string{"START"},
		},
		{
			name: "genie start dspec without mdata",
			doc:  `{"eid":"GE_GENIE_START","edata":{"dspec":{"os":"android"}}}`,
			want: []string{"START"},
		},
		{
			name: "genie start dspec not a map",
			doc:  `{"eid":"GE_GENIE_START","edata":{"dspec":"android"}}`,
			want: []string{"START"},
		},
		{
			name: "identity",
			doc:  `{"eid":"OE_ASSESS","edata":{"eks":{"score":1}}}`,
			want: []string{"OE_ASSESS"},
		},
		{
			name: "identity for mapped category",
			doc:  `{"eid":"GE_SESSION_END","edata":{"eks":{"length":12}}}`,
			want: []string{"GE_SESSION_END"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Convert(parseRecord(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, eids(events))
		})
	}
}

func TestConvertMissingEid(t *testing.T) {
	_, err := Convert(parseRecord(t, `{"edata":{}}`))
	require.Error(t, err)

	var ce *ConversionError
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, telemetry.ErrNotFound)
}

func TestConvertNonStringEid(t *testing.T) {
	_, err := Convert(parseRecord(t, `{"eid":7}`))
	assert.ErrorIs(t, err, telemetry.ErrTypeMismatch)
}

func TestConvertCopiesTagsIndependently(t *testing.T) {
	src := parseRecord(t, `{"eid":"GE_INTERACT","tags":{"partner":["p1"]},"edata":{"eks":{"subtype":"show"}}}`)

	events, err := Convert(src)
	require.NoError(t, err)
	require.Len(t, events, 3)

	for _, e := range events {
		tags, ok := e.Tags().AsMap()
		require.True(t, ok)
		assert.Contains(t, tags, "partner")
	}

	first, _ := events[0].Tags().AsMap()
	first["partner"] = value.String("mutated")

	second, _ := events[1].Tags().AsMap()
	partner, ok := second["partner"].AsList()
	require.True(t, ok, "mutating one event's tags must not leak into siblings")
	assert.Len(t, partner, 1)

	srcTags, _ := src["tags"].AsMap()
	_, ok = srcTags["partner"].AsList()
	assert.True(t, ok, "source tags must be untouched")
}

func TestConvertMissingTagsYieldsEmptyMap(t *testing.T) {
	events, err := Convert(parseRecord(t, `{"eid":"GE_ERROR"}`))
	require.NoError(t, err)

	tags, ok := events[0].Tags().AsMap()
	require.True(t, ok)
	assert.Empty(t, tags)
}

func TestConvertEnvelope(t *testing.T) {
	src := parseRecord(t, `{
		"eid":"CE_START","mid":"m-1","ets":1500000000123,"uid":"u-1","sid":"s-1","did":"d-1",
		"channel":"in.sunbird","pdata":{"id":"portal","ver":"1.0"},
		"gdata":{"id":"do_1","ver":"2"}
	}`)

	events, err := Convert(src)
	require.NoError(t, err)
	require.Len(t, events, 2)

	start := events[0].Reader()
	assert.Equal(t, Version, telemetry.Read[string](start, "ver").Value())
	assert.Equal(t, int64(1500000000123), telemetry.Read[int64](start, "ets").Value())
	assert.Equal(t, "u-1", telemetry.Read[string](start, "actor.id").Value())
	assert.Equal(t, "in.sunbird", telemetry.Read[string](start, "context.channel").Value())
	assert.Equal(t, "editor", telemetry.Read[string](start, "context.env").Value())
	assert.Equal(t, "portal", telemetry.Read[string](start, "context.pdata.id").Value())
	assert.Equal(t, "do_1", telemetry.Read[string](start, "object.id").Value())
	assert.Equal(t, "CE_START", telemetry.Read[string](start, "metadata.source_eid").Value())

	assert.NotEmpty(t, events[0].Mid())
	assert.NotEqual(t, events[0].Mid(), events[1].Mid(), "fan-out siblings need distinct ids")

	again, err := Convert(src)
	require.NoError(t, err)
	assert.Equal(t, events[0].Mid(), again[0].Mid(), "ids must be deterministic")
}

func TestConvertWithoutMidUsesContent(t *testing.T) {
	a, err := Convert(parseRecord(t, `{"eid":"GE_ERROR","ets":1}`))
	require.NoError(t, err)
	b, err := Convert(parseRecord(t, `{"eid":"GE_ERROR","ets":2}`))
	require.NoError(t, err)

	assert.NotEqual(t, a[0].Mid(), b[0].Mid())
}

func TestConvertDefaultsChannel(t *testing.T) {
	events, err := Convert(parseRecord(t, `{"eid":"GE_ERROR"}`))
	require.NoError(t, err)

	r := events[0].Reader()
	assert.Equal(t, "in.ekstep", telemetry.Read[string](r, "context.channel").Value())
	assert.Equal(t, "telemetry", telemetry.Read[string](r, "context.env").Value())
	assert.True(t, telemetry.Read[value.Map](r, "object").IsNull())
}
