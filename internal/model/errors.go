package model

import (
	"fmt"
	"strings"
)

// QueryError wraps a read failure from the underlying store. Callers must
// not treat partial results as displayable when one is returned.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("directory query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NotFoundError aborts a bulk transition: one or more requested IDs were
// missing from the curated set or no longer pending. No mutation occurred.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not pending or not found: %s", strings.Join(e.IDs, ", "))
}
