package core

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/table"
)

// ReportFilename is the consolidated report at the root of every archive.
const ReportFilename = "CLEANING_REPORT.txt"

// ArchiveEntries lists the entry names WriteArchive produces, in order.
func ArchiveEntries(out *RunOutcome) []string {
	var names []string
	for i := range out.Results {
		r := &out.Results[i]
		stem := table.Stem(r.Filename)
		if !r.Failed() {
			names = append(names, fmt.Sprintf("%s_cleaned.%s", stem, out.Format))
			if r.Splits != nil {
				for _, part := range []string{"train", "val", "test"} {
					names = append(names, fmt.Sprintf("%s_%s.%s", stem, part, out.Format))
				}
			}
		}
		names = append(names, stem+"_report.txt")
	}
	return append(names, ReportFilename)
}

// WriteArchive writes the run as a ZIP: per file the cleaned table, its
// splits and its report, then the consolidated report. Aborted files get
// only their report.
func WriteArchive(w io.Writer, out *RunOutcome) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for i := range out.Results {
		r := &out.Results[i]
		stem := table.Stem(r.Filename)

		if !r.Failed() {
			name := fmt.Sprintf("%s_cleaned.%s", stem, out.Format)
			if err := writeTableEntry(zw, name, modified, out.Format, r.Cleaned); err != nil {
				return err
			}
			if err := writeSplits(zw, stem, modified, out.Format, r.Splits); err != nil {
				return err
			}
		}
		if err := writeTextEntry(zw, stem+"_report.txt", modified, r.Report()); err != nil {
			return err
		}
	}

	if err := writeTextEntry(zw, ReportFilename, modified, cleaning.Report(out.Results)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func writeSplits(zw *zip.Writer, stem string, modified time.Time, format table.Format, s *cleaning.Splits) error {
	if s == nil {
		return nil
	}
	parts := []struct {
		name string
		t    *table.Table
	}{
		{"train", s.Train},
		{"val", s.Val},
		{"test", s.Test},
	}
	for _, p := range parts {
		name := fmt.Sprintf("%s_%s.%s", stem, p.name, format)
		if err := writeTableEntry(zw, name, modified, format, p.t); err != nil {
			return err
		}
	}
	return nil
}

func writeTableEntry(zw *zip.Writer, name string, modified time.Time, format table.Format, t *table.Table) error {
	// Encode fully first so a failed encode leaves no half-written entry.
	var buf bytes.Buffer
	if err := table.Write(&buf, format, t); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeEntry(zw, name, modified, buf.Bytes())
}

func writeTextEntry(zw *zip.Writer, name string, modified time.Time, text string) error {
	return writeEntry(zw, name, modified, []byte(text))
}

func writeEntry(zw *zip.Writer, name string, modified time.Time, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
