package models

import (
	"encoding/json"
	"testing"

	"github.com/vincentbai/telemetry-converter/internal/value"
)

func TestBatchUnmarshalKeepsRecordShape(t *testing.T) {
	data := []byte(`{"events":[{"eid":"GE_START","ets":1500000000000,"edata":{"dspec":{"mdata":{}}}},"not-an-object",null]}`)

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("Failed to unmarshal batch: %v", err)
	}
	if len(batch.Events) != 3 {
		t.Fatalf("Event count mismatch: got %d, want 3", len(batch.Events))
	}

	want := []value.Kind{value.KindMap, value.KindString, value.KindNull}
	for i, kind := range want {
		if got := batch.Events[i].Kind(); got != kind {
			t.Errorf("events[%d] kind = %s, want %s", i, got, kind)
		}
	}

	m, _ := batch.Events[0].AsMap()
	if ets, ok := m["ets"].AsInt(); !ok || ets != 1500000000000 {
		t.Errorf("ets mismatch: got %d (ok=%v)", ets, ok)
	}
}

func TestEmptyBatch(t *testing.T) {
	var batch Batch
	if err := json.Unmarshal([]byte(`{"events":[]}`), &batch); err != nil {
		t.Fatalf("Failed to unmarshal empty batch: %v", err)
	}
	if len(batch.Events) != 0 {
		t.Errorf("Expected 0 events, got %d", len(batch.Events))
	}
}

func TestResultOmitsEmptyCollections(t *testing.T) {
	data, err := json.Marshal(Result{Received: 1, Converted: 2, Indexed: 2})
	if err != nil {
		t.Fatalf("Failed to marshal result: %v", err)
	}

	want := `{"received":1,"converted":2,"indexed":2,"skipped":0,"failed":0,"index_failed":0}`
	if string(data) != want {
		t.Errorf("Result JSON mismatch:\n got %s\nwant %s", data, want)
	}
}
