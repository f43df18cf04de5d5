// Package routing assigns search-index destinations to converted events.
package routing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vincentbai/telemetry-converter/internal/telemetry"
	"github.com/vincentbai/telemetry-converter/internal/value"
)

// Destination names one index.
type Destination struct {
	IndexName string `yaml:"index_name"`
	IndexType string `yaml:"index_type"`
}

// Table maps v3 eids to destinations. Events without a route use Default.
//
//	default:
//	  index_name: telemetry
//	  index_type: events
//	routes:
//	  LOG:
//	    index_name: telemetry-logs
//	    index_type: events
type Table struct {
	Default Destination            `yaml:"default"`
	Routes  map[string]Destination `yaml:"routes"`
}

// DefaultTable routes everything to telemetry/events.
func DefaultTable() *Table {
	return &Table{Default: Destination{IndexName: "telemetry", IndexType: "events"}}
}

// Load reads a YAML route table. An empty path or a missing file yields
// DefaultTable.
func Load(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML route table. Default fields left blank fall back to
// DefaultTable's values.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	def := DefaultTable().Default
	if t.Default.IndexName == "" {
		t.Default.IndexName = def.IndexName
	}
	if t.Default.IndexType == "" {
		t.Default.IndexType = def.IndexType
	}
	return &t, nil
}

// Lookup returns the destination for eid.
func (t *Table) Lookup(eid string) Destination {
	if d, ok := t.Routes[eid]; ok {
		return d
	}
	return t.Default
}

// Route writes metadata.index_name and metadata.index_type onto the record
// read by r. Values already present on the record are kept.
func (t *Table) Route(r *telemetry.Reader) Destination {
	d := t.Lookup(telemetry.Read[string](r, "eid").Value())
	r.WriteIfAbsent("metadata.index_name", value.String(d.IndexName))
	r.WriteIfAbsent("metadata.index_type", value.String(d.IndexType))
	return d
}
