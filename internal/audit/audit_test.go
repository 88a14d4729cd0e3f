package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		action Action
		want   Severity
	}{
		{ActionRun, SeverityHigh},
		{ActionUpload, SeverityMedium},
		{ActionReset, SeverityMedium},
		{ActionExpire, SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.action); got != tt.want {
			t.Errorf("SeverityFor(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestStampKeepsExistingFields(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e := Stamp(Entry{Action: ActionUpload}, now)
	if e.ID == "" || e.Severity != SeverityMedium || !e.CreatedAt.Equal(now) {
		t.Errorf("stamped entry = %+v", e)
	}

	again := Stamp(e, now.Add(time.Hour))
	if again.ID != e.ID || !again.CreatedAt.Equal(now) {
		t.Error("Stamp overwrote fields that were already set")
	}
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := NewLogRecorder(logger)

	err := rec.Record(context.Background(), Entry{
		Action:      ActionRun,
		SessionID:   "s-1",
		Files:       []string{"a.csv"},
		ScoreBefore: 25,
		ScoreAfter:  0,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"action=run", "session_id=s-1", "severity=high", "score_before=25", "component=audit"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

type recordFunc func(context.Context, Entry) error

func (f recordFunc) Record(ctx context.Context, e Entry) error { return f(ctx, e) }

func TestMultiCallsEveryRecorder(t *testing.T) {
	var ids []string
	ok := recordFunc(func(_ context.Context, e Entry) error {
		ids = append(ids, e.ID)
		return nil
	})
	failing := recordFunc(func(context.Context, Entry) error { return errors.New("db down") })

	err := Multi{failing, nil, ok, ok}.Record(context.Background(), Entry{Action: ActionReset})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("err = %v, want joined failure", err)
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("recorders saw ids %v, want the same stamped id twice", ids)
	}
}

type fakeExec struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.err
}

func TestPgRecorderRecord(t *testing.T) {
	db := &fakeExec{}
	rec := &PgRecorder{db: db}

	err := rec.Record(context.Background(), Entry{
		Action:    ActionUpload,
		SessionID: "s-2",
		Files:     []string{"a.csv", "b.xlsx"},
		IPAddress: "10.0.0.7",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(db.args) != 1 {
		t.Fatalf("Exec calls = %d, want 1", len(db.args))
	}
	args := db.args[0]
	if args[1] != "upload" || args[2] != "medium" || args[3] != "s-2" {
		t.Errorf("args = %v", args[:4])
	}
	if id, ok := args[0].(pgtype.UUID); !ok || !id.Valid {
		t.Errorf("id arg = %#v, want valid uuid", args[0])
	}
	if score, ok := args[5].(pgtype.Float8); !ok || score.Valid {
		t.Errorf("upload should store NULL score, got %#v", args[5])
	}
	if ip, ok := args[7].(*netip.Addr); !ok || ip == nil || ip.String() != "10.0.0.7" {
		t.Errorf("ip arg = %#v", args[7])
	}
	if ua, ok := args[8].(pgtype.Text); !ok || ua.Valid {
		t.Errorf("empty user agent should be NULL, got %#v", args[8])
	}
}

func TestPgRecorderWrapsErrors(t *testing.T) {
	cause := errors.New("connection refused")
	rec := &PgRecorder{db: &fakeExec{err: cause}}

	if err := rec.Record(context.Background(), Entry{Action: ActionExpire}); !errors.Is(err, cause) {
		t.Errorf("Record err = %v, want wrapped cause", err)
	}
	if err := rec.EnsureSchema(context.Background()); !errors.Is(err, cause) {
		t.Errorf("EnsureSchema err = %v, want wrapped cause", err)
	}
}

func TestToInetRejectsGarbage(t *testing.T) {
	if toInet("not-an-ip") != nil || toInet("") != nil {
		t.Error("malformed address should map to NULL")
	}
}
