package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoFiles is returned when an upload carries no files.
	ErrNoFiles = errors.New("no file provided")
	// ErrNoValidFiles is returned when every uploaded file was skipped.
	ErrNoValidFiles = errors.New("no valid files in upload")
	// ErrFileTooLarge is returned when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrTooManyFiles is returned when an upload exceeds the file count limit.
	ErrTooManyFiles = errors.New("too many files in upload")
	// ErrCriticalDataset is returned when a run is refused by the severity gate.
	ErrCriticalDataset = errors.New("critical dataset")
)

// CriticalError names the files that tripped the severity gate.
type CriticalError struct {
	Files []string
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("%s: %s rated CRITICAL before cleaning, set override_warnings to run anyway",
		ErrCriticalDataset, strings.Join(e.Files, ", "))
}

func (e *CriticalError) Is(target error) bool {
	return target == ErrCriticalDataset
}
