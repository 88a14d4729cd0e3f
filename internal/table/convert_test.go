package table

import (
	"testing"
	"time"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{name: "integer", input: "123", want: 123, wantOK: true},
		{name: "negative", input: "-456", want: -456, wantOK: true},
		{name: "leading decimal point", input: ".99", want: 0.99, wantOK: true},
		{name: "trailing decimal point", input: "99.", want: 99, wantOK: true},
		{name: "dollar with thousands", input: "$1,234.56", want: 1234.56, wantOK: true},
		{name: "euro", input: "€1234.56", want: 1234.56, wantOK: true},
		{name: "pound", input: "£10", want: 10, wantOK: true},
		{name: "accounting negative", input: "(1,000.50)", want: -1000.5, wantOK: true},
		{name: "scientific", input: "1.5e3", want: 1500, wantOK: true},
		{name: "excel formula prefix", input: `="42"`, want: 42, wantOK: true},
		{name: "surrounding whitespace", input: "  7 ", want: 7, wantOK: true},

		{name: "empty", input: "", wantOK: false},
		{name: "whitespace", input: "   ", wantOK: false},
		{name: "letters", input: "abc", wantOK: false},
		{name: "double negative", input: "(-5)", wantOK: false},
		{name: "two points", input: "1.2.3", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		input  string
		want   int64
		wantOK bool
	}{
		{"12", 12, true},
		{"3.0", 3, true},
		{"1,000", 1000, true},
		{"2.5", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInteger(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseInteger(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{name: "iso", input: "2024-03-15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "us slashes", input: "3/15/2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "iso with time", input: "2024-03-15 10:30:00", want: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), wantOK: true},
		{name: "month name", input: "Mar 15, 2024", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "compact", input: "20240315", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "two digit year", input: "3/15/24", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "not a date", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDateTwoDigitYearPivot(t *testing.T) {
	got, ok := ParseDate("1/1/99")
	if !ok {
		t.Fatal("expected 1/1/99 to parse")
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input  string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"Yes", true, true},
		{"Y", true, true},
		{"1", true, true},
		{"FALSE", false, true},
		{"no", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		got, ok := ParseBool(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseBool(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		`  hello `:  "hello",
		`="00123"`:  "00123",
		`=SUM`:      "SUM",
		`"quoted"`:  "quoted",
		`'single'`:  "single",
		``:          "",
	}
	for in, want := range tests {
		if got := CleanCell(in); got != want {
			t.Errorf("CleanCell(%q) = %q, want %q", in, got, want)
		}
	}
}
