package models

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned by the listing source when Craigslist throttles
// the search. The caller decides whether to back off and retry; the pipeline
// never retries it internally.
var ErrRateLimited = errors.New("listing source rate limited")

// MalformedRecordError reports a raw record that cannot be normalized into a
// canonical listing. The affected record is skipped; it never aborts a batch.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q: %s", e.Field, e.Reason)
}

// IsMalformedRecord reports whether err is a MalformedRecordError.
func IsMalformedRecord(err error) bool {
	var m *MalformedRecordError
	return errors.As(err, &m)
}
