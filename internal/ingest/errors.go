package ingest

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput rejects a batch before any job is opened: missing tenant
// id or an empty batch. Fatal to the call, never retried.
var ErrInvalidInput = eris.New("ingest: invalid input")

// RecordError is a per-record processing failure, tagged with the record's
// external reference. It is isolated to that record and never aborts the
// batch.
type RecordError struct {
	Ref string
	Err error
}

func (e *RecordError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("record: %v", e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.Ref, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
