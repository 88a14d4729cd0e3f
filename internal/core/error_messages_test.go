package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/table"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "session not found", err: session.ErrNotFound, wantCode: "SES001"},
		{name: "wrapped session not found", err: fmt.Errorf("get abc: %w", session.ErrNotFound), wantCode: "SES001"},
		{name: "store full", err: session.ErrStoreFull, wantCode: "SES002"},
		{
			name:     "config error",
			err:      &cleaning.ConfigError{Errors: []cleaning.FieldError{{Field: "missing.strategy", Message: "unknown"}}},
			wantCode: "CFG001",
		},
		{name: "unrecognized chat command", err: cleaning.ErrUnrecognizedCommand, wantCode: "CFG002"},
		{name: "file too large", err: ErrFileTooLarge, wantCode: "FILE001"},
		{name: "file too large from text", err: errors.New("http: request body too large"), wantCode: "FILE001"},
		{name: "csv parse error", err: errors.New("record on line 3: wrong number of fields"), wantCode: "FILE002"},
		{name: "unsupported format", err: fmt.Errorf("notes.pdf: %w", table.ErrUnsupportedFormat), wantCode: "FILE003"},
		{name: "no files", err: ErrNoFiles, wantCode: "FILE004"},
		{name: "empty file", err: table.ErrEmptyFile, wantCode: "FILE005"},
		{name: "no valid files", err: ErrNoValidFiles, wantCode: "FILE006"},
		{name: "legacy excel wins over unsupported", err: table.ErrLegacyExcel, wantCode: "FILE007"},
		{name: "too many files", err: ErrTooManyFiles, wantCode: "FILE008"},
		{name: "critical dataset", err: &CriticalError{Files: []string{"a.csv"}}, wantCode: "RUN001"},
		{name: "cancelled", err: context.Canceled, wantCode: "RUN002"},
		{name: "deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), wantCode: "RUN003"},
		{name: "limiter busy", err: ErrTooManyRequests, wantCode: "RATE001"},
		{name: "case insensitive pattern", err: errors.New("RATE LIMIT exceeded"), wantCode: "RATE001"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNoFiles)

	expected := "No file was provided (Code: FILE004). Select at least one CSV or Excel file to upload"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: session.ErrNotFound, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("lookup: %w", session.ErrNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Session not found or expired" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, session.ErrNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})
}

func TestMapErrorKeepsUserError(t *testing.T) {
	inner := &UserError{Technical: errors.New("sheet index out of range"), User: msgInvalidCSV}
	err := fmt.Errorf("read data.xlsx: %w", inner)

	if got := MapError(err).Code; got != "FILE002" {
		t.Errorf("MapError() code = %q, want FILE002", got)
	}
	if got := NewUserError(err).User.Code; got != "FILE002" {
		t.Errorf("NewUserError() code = %q, want FILE002", got)
	}
}

func TestSkipMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"catalogued error keeps its code", table.ErrEmptyFile, "FILE005"},
		{"unknown read error reported as unparseable", errors.New("unexpected token in sheet"), "FILE002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipMessage(tt.err); !strings.Contains(got, "(Code: "+tt.code+")") {
				t.Errorf("skipMessage() = %q, want code %s", got, tt.code)
			}
		})
	}
}
