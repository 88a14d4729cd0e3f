package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/csvclean/internal/audit"
	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/metrics"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/table"
)

const (
	cleanCSV    = "id,name\n1,alice\n2,bob\n"
	dupCSV      = "id,name\n1,alice\n1,alice\n2,bob\n"
	criticalCSV = "a,b\n1,\n2,\n"
	gappyIntCSV = "id,n\n1,5\n2,\n3,7\n"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *memRecorder) actions() []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Action, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

func newTestService(t *testing.T, opts Options) (*Service, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	svc := NewService(Deps{
		Store:   session.NewMemoryStore(nil, time.Minute, 0),
		Audit:   rec,
		Metrics: metrics.New("test"),
	}, opts)
	return svc, rec
}

func csvFile(name, body string) UploadFile {
	return UploadFile{Name: name, Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func upload(t *testing.T, svc *Service, files ...UploadFile) *UploadResult {
	t.Helper()
	res, err := svc.Upload(context.Background(), files)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return res
}

func TestUpload(t *testing.T) {
	svc, rec := newTestService(t, Options{})

	ctx := WithClientInfo(context.Background(), ClientInfo{IPAddress: "10.0.0.1", UserAgent: "test"})
	res, err := svc.Upload(ctx, []UploadFile{
		csvFile("people.csv", cleanCSV),
		csvFile("dups.csv", dupCSV),
		csvFile("notes.pdf", "%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if res.SessionID == "" {
		t.Error("SessionID is empty")
	}
	if res.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", res.FileCount)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Filename != "notes.pdf" {
		t.Fatalf("Skipped = %+v, want notes.pdf", res.Skipped)
	}
	if !strings.Contains(res.Skipped[0].Reason, "FILE003") {
		t.Errorf("skip reason = %q, want FILE003", res.Skipped[0].Reason)
	}

	clean, dirty := res.FileStats[0], res.FileStats[1]
	if clean.DirtyScore != 0 || clean.Severity != cleaning.SeverityClean {
		t.Errorf("clean stat = %+v", clean)
	}
	if dirty.DuplicateRows != 1 || dirty.Rows != 3 || dirty.Columns != 2 {
		t.Errorf("dirty stat = %+v", dirty)
	}
	if dirty.DirtyScore != 16.67 {
		t.Errorf("dirty score = %v, want 16.67", dirty.DirtyScore)
	}
	if res.SuggestedConfig == nil || res.SuggestedConfig.Duplicates == nil {
		t.Error("suggested config missing duplicates section")
	}

	if got := svc.Status().Sessions; got != 1 {
		t.Errorf("Status().Sessions = %d, want 1", got)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Action != audit.ActionUpload || e.SessionID != res.SessionID || e.IPAddress != "10.0.0.1" {
		t.Errorf("audit entry = %+v", e)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		files   []UploadFile
		wantErr error
	}{
		{
			name:    "no files",
			files:   nil,
			wantErr: ErrNoFiles,
		},
		{
			name:    "nothing readable",
			files:   []UploadFile{csvFile("a.pdf", "x"), csvFile("b.csv", "")},
			wantErr: ErrNoValidFiles,
		},
		{
			name:    "too many files",
			opts:    Options{MaxFiles: 1},
			files:   []UploadFile{csvFile("a.csv", cleanCSV), csvFile("b.csv", cleanCSV)},
			wantErr: ErrTooManyFiles,
		},
		{
			name:    "declared size over limit",
			opts:    Options{MaxFileSize: 10},
			files:   []UploadFile{csvFile("a.csv", cleanCSV)},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "unknown size over limit",
			opts:    Options{MaxFileSize: 10},
			files:   []UploadFile{{Name: "a.csv", Size: -1, Reader: strings.NewReader(cleanCSV)}},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService(t, tt.opts)
			_, err := svc.Upload(context.Background(), tt.files)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.wantErr)
			}
			if n := svc.Status().Sessions; n != 0 {
				t.Errorf("sessions = %d, want 0", n)
			}
			if len(rec.entries) != 0 {
				t.Errorf("audit entries = %d, want 0", len(rec.entries))
			}
		})
	}
}

func TestUploadNames(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	res := upload(t, svc,
		csvFile("../../etc/data.csv", cleanCSV),
		csvFile("data.csv", cleanCSV),
		csvFile("DATA.xlsx.csv", cleanCSV),
	)

	want := []string{"data.csv", "data_2.csv", "DATA.xlsx.csv"}
	for i, name := range want {
		if res.Filenames[i] != name {
			t.Errorf("Filenames[%d] = %q, want %q", i, res.Filenames[i], name)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sales.csv", "sales.csv"},
		{"my data (1).csv", "my data _1_.csv"},
		{`C:\Users\me\q1.csv`, "q1.csv"},
		{"../../secret.csv", "secret.csv"},
		{".hidden.csv", "hidden.csv"},
		{"a;b|c.csv", "a_b_c.csv"},
		{"", "file"},
		{"...", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSession(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	res := upload(t, svc, csvFile("a.csv", dupCSV))

	got, err := svc.Session(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if got.FileCount != 1 || got.FileStats[0].DuplicateRows != 1 {
		t.Errorf("Session() = %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.After(time.Now()) {
		t.Errorf("ExpiresAt = %v, want a future time", got.ExpiresAt)
	}

	if _, err := svc.Session(context.Background(), "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Session(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRun(t *testing.T) {
	svc, rec := newTestService(t, Options{})
	res := upload(t, svc, csvFile("dups.csv", dupCSV))

	out, err := svc.Run(context.Background(), RunRequest{
		SessionID: res.SessionID,
		Config:    &cleaning.Config{Duplicates: &cleaning.DuplicatesConfig{Keep: cleaning.KeepFirst}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if out.Format != table.FormatCSV {
		t.Errorf("Format = %q, want csv", out.Format)
	}
	if len(out.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(out.Results))
	}
	r := out.Results[0]
	if r.Failed() {
		t.Fatalf("result failed: %v", r.Err)
	}
	if r.Cleaned.NumRows() != 2 {
		t.Errorf("cleaned rows = %d, want 2", r.Cleaned.NumRows())
	}
	if out.Dirty() {
		t.Error("Dirty() = true, want false")
	}
	if out.Succeeded() != 1 {
		t.Errorf("Succeeded() = %d, want 1", out.Succeeded())
	}

	if _, err := svc.Session(context.Background(), res.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("session survived a successful run: %v", err)
	}

	actions := rec.actions()
	if len(actions) != 2 || actions[1] != audit.ActionRun {
		t.Fatalf("audit actions = %v, want [upload run]", actions)
	}
	if run := rec.entries[1]; run.ScoreBefore != 16.67 || run.ScoreAfter != 0 || run.Detail != metrics.OutcomeSuccess {
		t.Errorf("run entry = %+v", run)
	}
}

func TestRunRejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		gate    bool
		req     RunRequest
		check   func(error) bool
		wantErr string
	}{
		{
			name:    "unknown session",
			body:    cleanCSV,
			req:     RunRequest{SessionID: "nope"},
			check:   func(err error) bool { return errors.Is(err, session.ErrNotFound) },
			wantErr: "ErrNotFound",
		},
		{
			name: "invalid config",
			body: cleanCSV,
			req: RunRequest{Config: &cleaning.Config{
				Outliers: cleaning.OutliersConfig{Method: "iqr"},
			}},
			check:   cleaning.IsConfigError,
			wantErr: "*ConfigError",
		},
		{
			name:    "critical dataset",
			body:    criticalCSV,
			gate:    true,
			req:     RunRequest{},
			check:   func(err error) bool { return errors.Is(err, ErrCriticalDataset) },
			wantErr: "ErrCriticalDataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, Options{CriticalGate: tt.gate})
			res := upload(t, svc, csvFile("a.csv", tt.body))
			if tt.req.SessionID == "" {
				tt.req.SessionID = res.SessionID
			}

			_, err := svc.Run(context.Background(), tt.req)
			if !tt.check(err) {
				t.Fatalf("Run() error = %v, want %s", err, tt.wantErr)
			}
			if _, err := svc.Session(context.Background(), res.SessionID); err != nil {
				t.Errorf("session lost after rejected run: %v", err)
			}
		})
	}
}

func TestRunCriticalOverride(t *testing.T) {
	svc, _ := newTestService(t, Options{CriticalGate: true})
	res := upload(t, svc, csvFile("bad.csv", criticalCSV))

	_, err := svc.Run(context.Background(), RunRequest{SessionID: res.SessionID})
	var critical *CriticalError
	if !errors.As(err, &critical) || len(critical.Files) != 1 || critical.Files[0] != "bad.csv" {
		t.Fatalf("Run() error = %v, want CriticalError for bad.csv", err)
	}

	out, err := svc.Run(context.Background(), RunRequest{SessionID: res.SessionID, OverrideWarnings: true})
	if err != nil {
		t.Fatalf("Run() with override error = %v", err)
	}
	if !out.Dirty() {
		t.Error("Dirty() = false, want true for an untouched critical file")
	}
}

func TestRunAllFilesFailedKeepsSession(t *testing.T) {
	svc, rec := newTestService(t, Options{})
	res := upload(t, svc, csvFile("gaps.csv", gappyIntCSV))

	cfg := &cleaning.Config{Missing: cleaning.MissingConfig{Fill: map[string]cleaning.FillSpec{
		"n": {Strategy: cleaning.StrategyConstant, Value: "abc"},
	}}}
	out, err := svc.Run(context.Background(), RunRequest{SessionID: res.SessionID, Config: cfg})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Succeeded() != 0 || !out.Results[0].Failed() {
		t.Fatalf("results = %+v, want one failed file", out.Results)
	}
	if _, err := svc.Session(context.Background(), res.SessionID); err != nil {
		t.Errorf("session discarded after a fully failed run: %v", err)
	}
	if got := rec.entries[len(rec.entries)-1].Detail; got != metrics.OutcomeFailed {
		t.Errorf("run outcome = %q, want failed", got)
	}
}

func TestRunOutputFormat(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	res := upload(t, svc, csvFile("a.csv", cleanCSV))

	out, err := svc.Run(context.Background(), RunRequest{SessionID: res.SessionID, OutputFormat: table.FormatXLSX})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Format != table.FormatXLSX {
		t.Errorf("Format = %q, want xlsx", out.Format)
	}
}

func TestAuditFailureDoesNotFailRequests(t *testing.T) {
	svc, rec := newTestService(t, Options{})
	rec.err = errors.New("database down")

	res := upload(t, svc, csvFile("a.csv", cleanCSV))
	if _, err := svc.Run(context.Background(), RunRequest{SessionID: res.SessionID}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rec.entries) != 2 {
		t.Errorf("audit attempts = %d, want 2", len(rec.entries))
	}
}

func TestChat(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	base := &cleaning.Config{}

	reply, err := svc.Chat(context.Background(), "remove duplicates", base)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply.Reply == "" {
		t.Error("Reply is empty")
	}
	if reply.Config.Duplicates == nil || reply.Config.Duplicates.Keep != cleaning.KeepFirst {
		t.Errorf("Config.Duplicates = %+v, want keep first", reply.Config.Duplicates)
	}
	if base.Duplicates != nil {
		t.Error("Chat() modified the input config")
	}

	if _, err := svc.Chat(context.Background(), "make it better", base); !errors.Is(err, cleaning.ErrUnrecognizedCommand) {
		t.Errorf("Chat(unknown) error = %v, want ErrUnrecognizedCommand", err)
	}
}

func TestReset(t *testing.T) {
	svc, rec := newTestService(t, Options{})
	res := upload(t, svc, csvFile("a.csv", cleanCSV))

	if err := svc.Reset(context.Background(), res.SessionID); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := svc.Reset(context.Background(), res.SessionID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("second Reset() error = %v, want ErrNotFound", err)
	}
	if actions := rec.actions(); len(actions) != 2 || actions[1] != audit.ActionReset {
		t.Errorf("audit actions = %v, want [upload reset]", actions)
	}
}

func TestSweepSessions(t *testing.T) {
	svc, rec := newTestService(t, Options{})
	res := upload(t, svc, csvFile("a.csv", cleanCSV))

	if got := svc.SweepSessions(context.Background()); len(got) != 0 {
		t.Fatalf("fresh session swept: %v", got)
	}

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	got := svc.SweepSessions(context.Background())
	if len(got) != 1 || got[0] != res.SessionID {
		t.Fatalf("SweepSessions() = %v, want [%s]", got, res.SessionID)
	}
	if n := svc.Status().Sessions; n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
	if actions := rec.actions(); actions[len(actions)-1] != audit.ActionExpire {
		t.Errorf("last audit action = %v, want expire", actions[len(actions)-1])
	}
}

func TestStartSessionSweeperStops(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartSessionSweeper(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestOptionsDefaults(t *testing.T) {
	svc := NewService(Deps{}, Options{})

	if svc.Thresholds() != cleaning.DefaultThresholds() {
		t.Errorf("Thresholds() = %+v, want defaults", svc.Thresholds())
	}
	if svc.opts.RunTimeout != DefaultRunTimeout {
		t.Errorf("RunTimeout = %v, want %v", svc.opts.RunTimeout, DefaultRunTimeout)
	}
	st := svc.Status()
	if st.Limiter.MaxConcurrent != DefaultMaxConcurrent || st.Sessions != 0 {
		t.Errorf("Status() = %+v", st)
	}
	if err := svc.WaitForRuns(context.Background()); err != nil {
		t.Errorf("WaitForRuns() on idle service error = %v", err)
	}
}
