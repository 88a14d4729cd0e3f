package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/csvclean/internal/audit"
	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// UploadFile is one file of an upload request.
type UploadFile struct {
	Name   string
	Size   int64 // -1 when unknown
	Reader io.Reader
}

// FileStat summarises the assessment of one stored file.
type FileStat struct {
	Filename        string                 `json:"filename"`
	DirtyScore      float64                `json:"dirty_score"`
	Severity        cleaning.Severity      `json:"severity"`
	MissingCount    int                    `json:"missing_count"`
	DuplicateRows   int                    `json:"duplicate_rows"`
	Rows            int                    `json:"rows"`
	Columns         int                    `json:"columns"`
	MissingByColumn []cleaning.ColumnCount `json:"missing_by_column,omitempty"`
}

// SkippedFile is an uploaded file that could not be read.
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// UploadResult is returned by Upload and by Session.
type UploadResult struct {
	SessionID       string           `json:"session_id"`
	FileCount       int              `json:"file_count"`
	Filenames       []string         `json:"filenames"`
	FileStats       []FileStat       `json:"file_stats"`
	Skipped         []SkippedFile    `json:"skipped"`
	SuggestedConfig *cleaning.Config `json:"suggested_config"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
}

// Upload parses every file, assesses it and stores the readable ones in a
// new session. Unreadable files are reported in Skipped; when none is
// readable ErrNoValidFiles is returned and no session is created. A file
// over the size limit fails the whole upload with ErrFileTooLarge.
func (s *Service) Upload(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		s.metrics.RecordUpload("rejected", 0)
		return nil, ErrNoFiles
	}
	if s.opts.MaxFiles > 0 && len(files) > s.opts.MaxFiles {
		s.metrics.RecordUpload("rejected", 0)
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(files), s.opts.MaxFiles)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.FromContext(ctx)
	start := time.Now()

	var (
		stored  []session.File
		skipped []SkippedFile
		bytes   int64
		names   = newNameSet()
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := names.claim(SanitizeFilename(f.Name))
		t, n, err := s.readFile(name, f)
		bytes += n
		if errors.Is(err, ErrFileTooLarge) {
			s.metrics.RecordUpload("rejected", bytes)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err != nil {
			logger.Info("upload file skipped", "file", name, "error", err)
			s.metrics.RecordSkippedFile(skipReason(err))
			skipped = append(skipped, SkippedFile{Filename: name, Reason: skipMessage(err)})
			continue
		}

		a := cleaning.AssessWith(t, s.opts.Thresholds)
		s.metrics.RecordScore("before", a.Score)
		stored = append(stored, session.File{Name: name, Table: t, Assessment: a})
	}

	if len(stored) == 0 {
		s.metrics.RecordUpload("rejected", bytes)
		return nil, ErrNoValidFiles
	}

	tables := make([]*table.Table, len(stored))
	for i, f := range stored {
		tables[i] = f.Table
	}
	suggested := cleaning.Suggest(tables...)

	sess, err := s.store.Create(stored, suggested)
	if err != nil {
		s.metrics.RecordUpload("rejected", bytes)
		return nil, err
	}
	s.metrics.RecordUpload("accepted", bytes)
	s.metrics.SetSessions(s.store.Len())

	ctx = logging.WithSessionID(ctx, sess.ID)
	logging.FromContext(ctx).Info("upload stored",
		"files", len(stored),
		"skipped", len(skipped),
		"bytes", bytes,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	result := sessionResult(sess, nil)
	result.Skipped = skipped
	s.record(ctx, audit.Entry{
		Action:    audit.ActionUpload,
		SessionID: sess.ID,
		Files:     result.Filenames,
		Detail:    fmt.Sprintf("%d stored, %d skipped", len(stored), len(skipped)),
	})
	return result, nil
}

// Session returns the stored file stats and suggested config of a session.
func (s *Service) Session(ctx context.Context, id string) (*UploadResult, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	var expires *time.Time
	if ttl, ok := s.store.(interface{ TTL() time.Duration }); ok {
		t := sess.LastAccess.Add(ttl.TTL())
		expires = &t
	}
	return sessionResult(sess, expires), nil
}

func sessionResult(sess session.Session, expires *time.Time) *UploadResult {
	result := &UploadResult{
		SessionID:       sess.ID,
		FileCount:       len(sess.Files),
		Filenames:       make([]string, len(sess.Files)),
		FileStats:       make([]FileStat, len(sess.Files)),
		Skipped:         []SkippedFile{},
		SuggestedConfig: sess.Suggested,
		ExpiresAt:       expires,
	}
	for i, f := range sess.Files {
		result.Filenames[i] = f.Name
		result.FileStats[i] = newFileStat(f.Name, f.Assessment)
	}
	return result
}

func newFileStat(name string, a cleaning.Assessment) FileStat {
	return FileStat{
		Filename:        name,
		DirtyScore:      roundScore(a.Score),
		Severity:        a.Severity,
		MissingCount:    a.MissingCells,
		DuplicateRows:   a.DuplicateRows,
		Rows:            a.Rows,
		Columns:         a.Columns,
		MissingByColumn: a.MissingByColumn,
	}
}

// readFile parses one upload, stopping once more than MaxFileSize bytes
// have been read. It returns the bytes consumed.
func (s *Service) readFile(name string, f UploadFile) (*table.Table, int64, error) {
	limit := s.opts.MaxFileSize
	if limit > 0 && f.Size > limit {
		return nil, 0, ErrFileTooLarge
	}

	r := f.Reader
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	counter := table.NewCountingReader(r)

	t, err := table.Read(name, counter)
	if limit > 0 && counter.BytesRead > limit {
		return nil, counter.BytesRead, ErrFileTooLarge
	}
	if err != nil {
		return nil, counter.BytesRead, err
	}
	return t, counter.BytesRead, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, table.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, table.ErrEmptyFile):
		return "empty"
	default:
		return "parse_error"
	}
}

// skipMessage explains why a file was skipped. Read errors the catalogue
// has no entry for are reported as unparseable files.
func skipMessage(err error) string {
	if !IsUserFacing(err) {
		err = &UserError{Technical: err, User: msgInvalidCSV}
	}
	return FormatUserError(err)
}

func roundScore(x float64) float64 {
	return math.Round(x*100) / 100
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-. ]`)

// SanitizeFilename strips directories and replaces every character other
// than letters, digits, underscore, hyphen, dot and space with '_'. The
// result names entries in the result archive.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	if name == "" {
		return "file"
	}
	return name
}

// nameSet keeps file stems unique within one upload, since archive entries
// are named by stem.
type nameSet map[string]bool

func newNameSet() nameSet { return nameSet{} }

func (n nameSet) claim(name string) string {
	stem, ext := table.Stem(name), filepath.Ext(name)
	candidate := stem
	for i := 2; n[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s_%d", stem, i)
	}
	n[strings.ToLower(candidate)] = true
	return candidate + ext
}
