package normalize

import (
	"fmt"

	"github.com/hyperjump/mindline/internal/models"
)

// MalformedItemError reports a raw item that cannot be turned into a timeline item.
// The caller skips the item and carries on with the batch.
type MalformedItemError struct {
	Source   models.SourceType
	NativeID string
	Reason   string
	Err      error
}

func (e *MalformedItemError) Error() string {
	msg := fmt.Sprintf("malformed %s item %q: %s", e.Source, e.NativeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedItemError) Unwrap() error { return e.Err }

func malformed(raw models.RawItem, reason string, err error) error {
	return &MalformedItemError{Source: raw.Source, NativeID: raw.NativeID, Reason: reason, Err: err}
}
