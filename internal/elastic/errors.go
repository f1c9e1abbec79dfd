package elastic

import (
	"errors"
	"fmt"
)

// Configuration errors reported by NewStore before any network I/O happens.
var (
	ErrNoNodes    = errors.New("node list is empty")
	ErrEmptyIndex = errors.New("index name is empty")
)

// SchemaError means the index-template check or creation failed for a reason
// other than "template not found". The backend's schema state is unknown at
// that point, so the connection attempt is aborted instead of retried.
type SchemaError struct {
	Op     string // "check" or "create"
	Status string // backend HTTP status, empty on transport errors
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index template %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index template %s failed: %s", e.Op, e.Status)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ItemError is one rejected document from a bulk response.
type ItemError struct {
	ID     string
	Status int
	Reason string
}

// PartialWriteError means the bulk request itself went through but the
// backend rejected one or more documents. It is terminal: retrying the batch
// would re-submit documents that were already indexed, so the caller has to
// decide how to resubmit from the last known-good position.
type PartialWriteError struct {
	Index string
	Items []ItemError
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%d document(s) failed to index into '%s'", len(e.Items), e.Index)
}
