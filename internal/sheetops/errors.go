package sheetops

import (
	"errors"
	"fmt"
)

// ErrTargetMissing is returned when the sheet to clear does not exist.
// The caller is expected to stop the run.
var ErrTargetMissing = errors.New("sheetops: target sheet not found")

// ErrImportFailed is returned when a file import fails at the transport or
// HTTP level. Only the current table is affected.
var ErrImportFailed = errors.New("sheetops: import failed")

// ImportRejectedError is returned when the service accepted an import
// request but did not report SUCCESS. The caller is expected to stop the
// whole run.
type ImportRejectedError struct {
	Name       string
	Message    string
	ResultCode int
}

func (e *ImportRejectedError) Error() string {
	return fmt.Sprintf("sheetops: import of %q rejected: %s (result code %d)", e.Name, e.Message, e.ResultCode)
}

// StagingError reports a failure that happened after a staging sheet was
// created. StagingID is the sheet left behind.
type StagingError struct {
	StagingID int64
	Step      string
	Err       error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("sheetops: %s failed, staging sheet %d left behind: %v", e.Step, e.StagingID, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}
