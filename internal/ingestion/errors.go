package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrCommitAborted reports that the commit transaction failed as a whole.
	ErrCommitAborted = errors.New("import aborted, nothing was saved")
	// ErrInvalidRequest wraps request level validation failures.
	ErrInvalidRequest = errors.New("invalid import request")
)

// RowError is a per-row commit failure reported back to the caller.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func rowMessage(row int, err error) string {
	return fmt.Sprintf("row %d: %v", row, err)
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
