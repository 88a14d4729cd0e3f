package core

// error_messages.go maps technical errors to user-facing messages with
// support codes. Users quote the code; support looks it up here.
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: unknown, reset or expired session
//	         Action: Upload your files again
//	SES002 - Session store full: too many sessions in memory
//	         Action: Wait a few minutes and try again
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid cleaning configuration (field errors attached)
//	         Action: Correct the listed fields and run again
//	CFG002 - Command not recognized by the chat translator
//	         Action: Try one of the listed example commands
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - File could not be parsed as CSV
//	FILE003 - Unsupported file type
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - No uploaded file could be read
//	FILE007 - Legacy .xls workbook
//	FILE008 - Too many files in one upload
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Critical dataset: run refused without override
//	RUN002 - Request cancelled
//	RUN003 - Request timed out
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many concurrent requests or rate limit hit
//
// # Default Error (ERR000)
//
// Fallback when nothing matches; the technical error is in the logs.
//
// Sentinel errors are matched first with errors.Is so wrapped errors keep
// their code. Message patterns are a fallback for errors produced by
// libraries, matched case-insensitively, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgSessionNotFound = UserMessage{
		Message: "Session not found or expired",
		Action:  "Upload your files again to start a new session",
		Code:    "SES001",
	}
	msgStoreFull = UserMessage{
		Message: "The service is holding too many sessions",
		Action:  "Wait a few minutes and try again",
		Code:    "SES002",
	}
	msgInvalidConfig = UserMessage{
		Message: "The cleaning configuration is invalid",
		Action:  "Correct the listed fields and run again",
		Code:    "CFG001",
	}
	msgUnrecognizedCommand = UserMessage{
		Message: "Command not recognized",
		Action:  `Try "drop rows with missing <column>", "fill missing <column> with median", "sort by <column> descending" or "remove duplicates"`,
		Code:    "CFG002",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File could not be parsed",
		Action:  "Ensure the file is comma, semicolon or tab separated",
		Code:    "FILE002",
	}
	msgUnsupportedFormat = UserMessage{
		Message: "Unsupported file type",
		Action:  "Upload .csv, .tsv, .txt or .xlsx files",
		Code:    "FILE003",
	}
	msgNoFiles = UserMessage{
		Message: "No file was provided",
		Action:  "Select at least one CSV or Excel file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row",
		Code:    "FILE005",
	}
	msgNoValidFiles = UserMessage{
		Message: "None of the uploaded files could be read",
		Action:  "Check the skipped file reasons and upload again",
		Code:    "FILE006",
	}
	msgLegacyExcel = UserMessage{
		Message: "Legacy .xls workbooks are not supported",
		Action:  "Save the workbook as .xlsx or export it to CSV",
		Code:    "FILE007",
	}
	msgTooManyFiles = UserMessage{
		Message: "Too many files in one upload",
		Action:  "Upload fewer files at a time",
		Code:    "FILE008",
	}
	msgCritical = UserMessage{
		Message: "Dataset quality is critical",
		Action:  "Review the assessment, then run again with override_warnings set",
		Code:    "RUN001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try fewer or smaller files",
		Code:    "RUN003",
	}
	msgBusy = UserMessage{
		Message: "The service is busy",
		Action:  "Please wait a moment and try again",
		Code:    "RATE001",
	}
)

// sentinels are checked in order with errors.Is.
var sentinels = []struct {
	err error
	msg UserMessage
}{
	{session.ErrNotFound, msgSessionNotFound},
	{session.ErrStoreFull, msgStoreFull},
	{cleaning.ErrUnrecognizedCommand, msgUnrecognizedCommand},
	{ErrCriticalDataset, msgCritical},
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrTooManyFiles, msgTooManyFiles},
	{ErrNoFiles, msgNoFiles},
	{ErrNoValidFiles, msgNoValidFiles},
	{table.ErrLegacyExcel, msgLegacyExcel},
	{table.ErrUnsupportedFormat, msgUnsupportedFormat},
	{table.ErrEmptyFile, msgEmptyFile},
	{ErrTooManyRequests, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPatterns match error text when no sentinel does.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgFileTooLarge},
	{"file too large", msgFileTooLarge},
	{"parse error on line", msgInvalidCSV},
	{"wrong number of fields", msgInvalidCSV},
	{"bare \" in non-quoted-field", msgInvalidCSV},
	{"zip: not a valid zip file", msgUnsupportedFormat},
	{"rate limit", msgBusy},
	{"timeout", msgTimeout},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}
	if cleaning.IsConfigError(err) {
		return msgInvalidConfig
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error. An err that
// already carries a UserError keeps its message.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
