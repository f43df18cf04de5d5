package convert

import "fmt"

// ConversionError reports why one source record could not be converted.
// It unwraps to the underlying telemetry error when there is one.
type ConversionError struct {
	Eid string
	Err error
}

func (e *ConversionError) Error() string {
	if e.Eid == "" {
		return fmt.Sprintf("convert: %v", e.Err)
	}
	return fmt.Sprintf("convert %s: %v", e.Eid, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
