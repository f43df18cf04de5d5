package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/telemetry-converter/internal/indexer"
	"github.com/vincentbai/telemetry-converter/internal/routing"
	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

type memorySink struct {
	indexed   []*indexer.Document
	dead      []*indexer.Document
	indexErr  error
	deadErr   error
	indexCall int
}

func (m *memorySink) IndexDocuments(_ context.Context, docs []*indexer.Document) error {
	m.indexCall++
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed = append(m.indexed, docs...)
	return nil
}

func (m *memorySink) InsertDeadLetters(_ context.Context, docs []*indexer.Document) error {
	if m.deadErr != nil {
		return m.deadErr
	}
	m.dead = append(m.dead, docs...)
	return nil
}

func records(t *testing.T, docs ...string) []value.Value {
	t.Helper()
	out := make([]value.Value, len(docs))
	for i, doc := range docs {
		v, err := value.Parse([]byte(doc))
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func read(doc *indexer.Document, path string) string {
	return telemetry.Read[string](telemetry.NewReader(doc.Map()), path).Value()
}

func TestProcessMixedBatch(t *testing.T) {
	sink := &memorySink{}
	stage := NewStage(sink, nil, 2)

	result, err := stage.Process(context.Background(), records(t,
		`{"eid":"GE_INTERACT","mid":"a","edata":{"eks":{"subtype":"show"}}}`,
		`{"mid":"b","edata":{}}`,
		`{"eid":"CE_START","mid":"c"}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Received)
	assert.Equal(t, 5, result.Converted)
	assert.Equal(t, 5, result.Indexed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "b", result.Errors[0].Mid)

	var got []string
	for _, doc := range sink.indexed {
		got = append(got, read(doc, "eid"))
	}
	assert.Equal(t, []string{"IMPRESSION", "LOG", "INTERACT", "START", "IMPRESSION"}, got)

	require.Len(t, sink.dead, 1)
	assert.Equal(t, indexer.StatusFailed, sink.dead[0].Status())
	assert.Equal(t, "b", read(sink.dead[0], "mid"))
	assert.Contains(t, read(sink.dead[0], "metadata.es_indexer_error"), "path not found")
}

func TestProcessNonObjectRecord(t *testing.T) {
	sink := &memorySink{}
	result, err := NewStage(sink, nil, 1).Process(context.Background(), records(t, `"oops"`))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, sink.indexCall, "nothing to index")
	require.Len(t, sink.dead, 1)
	assert.Equal(t, "oops", read(sink.dead[0], "raw"))
}

func TestProcessSkipsUnroutableEvents(t *testing.T) {
	table, err := routing.Parse([]byte("routes:\n  EXDATA:\n    index_name: \"\"\n    index_type: exdata\n"))
	require.NoError(t, err)

	sink := &memorySink{}
	result, err := NewStage(sink, table, 1).Process(context.Background(), records(t,
		`{"eid":"GE_START","mid":"g","edata":{"dspec":{"mdata":{"k":"v"}}}}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, sink.dead, 1)
	assert.Equal(t, "EXDATA", read(sink.dead[0], "eid"))
	assert.True(t, telemetry.Read[bool](telemetry.NewReader(sink.dead[0].Map()), "flags.es_indexer_skipped").Value())
}

func TestProcessIndexFailure(t *testing.T) {
	sink := &memorySink{indexErr: errors.New("disk full")}
	result, err := NewStage(sink, nil, 1).Process(context.Background(), records(t,
		`{"eid":"CE_START","mid":"c"}`,
	))
	require.NoError(t, err)

	assert.Equal(t, 0, result.Indexed)
	assert.Equal(t, 2, result.IndexFailed)
	require.Len(t, sink.dead, 2)
	for _, doc := range sink.dead {
		assert.Equal(t, indexer.StatusIndexError, doc.Status())
		assert.Equal(t, "disk full", read(doc, "metadata.es_indexer_error"))
	}
}

func TestProcessResultEventsOmitDeliveryAnnotations(t *testing.T) {
	sink := &memorySink{indexErr: errors.New("disk full")}
	result, err := NewStage(sink, nil, 1).Process(context.Background(), records(t,
		`{"eid":"CE_START","mid":"c"}`,
	))
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	for _, e := range result.Events {
		m, ok := e.AsMap()
		require.True(t, ok)
		r := telemetry.NewReader(m)
		assert.Equal(t, "telemetry", telemetry.Read[string](r, "metadata.index_name").Value())
		_, annotated := r.Lookup("metadata.es_indexer_status")
		assert.False(t, annotated)
		_, flagged := r.Lookup("flags")
		assert.False(t, flagged)
	}
	for _, doc := range sink.dead {
		assert.Equal(t, indexer.StatusIndexError, doc.Status())
	}
}

func TestProcessDeadLetterFailure(t *testing.T) {
	sink := &memorySink{deadErr: errors.New("locked")}
	_, err := NewStage(sink, nil, 1).Process(context.Background(), records(t, `{"edata":{}}`))
	assert.ErrorContains(t, err, "locked")
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	_, err := NewStage(sink, nil, 1).Process(ctx, records(t, `{"eid":"GE_ERROR"}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.indexed)
}

func TestProcessKeepsInputOrderUnderConcurrency(t *testing.T) {
	var docs []string
	for i := range 64 {
		docs = append(docs, fmt.Sprintf(`{"eid":"CE_START","mid":"m-%02d","sid":"s-%02d"}`, i, i))
	}

	sink := &memorySink{}
	result, err := NewStage(sink, nil, 8).Process(context.Background(), records(t, docs...))
	require.NoError(t, err)
	require.Equal(t, 128, result.Indexed)

	for i := range 64 {
		start, impression := sink.indexed[2*i], sink.indexed[2*i+1]
		assert.Equal(t, "START", read(start, "eid"))
		assert.Equal(t, "IMPRESSION", read(impression, "eid"))
		want := fmt.Sprintf("s-%02d", i)
		assert.Equal(t, want, read(start, "context.sid"))
		assert.Equal(t, want, read(impression, "context.sid"))
	}
	assert.Equal(t, "CE_START", read(sink.indexed[0], "metadata.source_eid"))
}

func TestProcessEmptyBatch(t *testing.T) {
	sink := &memorySink{}
	result, err := NewStage(sink, nil, 0).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Received)
	assert.Equal(t, 0, sink.indexCall)
}
