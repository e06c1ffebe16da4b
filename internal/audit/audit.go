// Package audit appends one row per extraction attempt to a daily CSV file,
// forming the service's append-only execution trail.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Status classifies the terminal outcome of a single extraction attempt.
type Status string

const (
	StatusDone             Status = "Done"
	StatusRecoveredFromDLQ Status = "RecoveredFromDLQ"
	StatusRetryAttempt     Status = "RetryAttempt"
	StatusFailed           Status = "Failed"
	StatusCancelled        Status = "Cancelled"
)

const (
	filePrefix     = "ExecutionAudit_"
	fileDateLayout = "20060102"
	timeLayout     = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

var auditHeader = []string{
	"StartTimeLocal",
	"EndTimeLocal",
	"TargetDate",
	"DurationSeconds",
	"Status",
	"Attempt",
	"ErrorMessage",
	"ReportFileName",
}

// Attempt is one audit row: the local start/end of an extraction attempt, the
// trading date it targeted, its terminal status, and the 1-based attempt
// counter. ErrorMessage and ReportFileName are optional and rendered empty
// when absent.
type Attempt struct {
	StartLocal     time.Time
	EndLocal       time.Time
	TargetDate     time.Time
	Status         Status
	Attempt        int
	ErrorMessage   string
	ReportFileName string
}

// Sink appends audit rows to ExecutionAudit_<YYYYMMDD>.csv files, one file per
// local calendar day keyed on each attempt's end time. A single mutex
// serializes concurrent appends; the visible row order is mutex acquire order.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// NewSink validates and ensures the audit directory and returns the sink.
// An empty directory is a configuration error.
func NewSink(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// LogAttempt appends one row for the attempt, creating the day's file with its
// header on first use. Fields containing commas, quotes, or line breaks are
// quoted with internal quotes doubled (RFC 4180).
//
// Rejects attempts with a counter below 1 or an empty status; those are caller
// bugs, not I/O conditions.
func (s *Sink) LogAttempt(ctx context.Context, a Attempt) error {
	if a.Attempt < 1 {
		return fmt.Errorf("invalid argument: attempt must be >= 1, got %d", a.Attempt)
	}
	if a.Status == "" {
		return fmt.Errorf("invalid argument: status must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filePrefix + a.EndLocal.Format(fileDateLayout) + ".csv"
	path := filepath.Join(s.dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(auditHeader); err != nil {
			return fmt.Errorf("write audit header: %w", err)
		}
	}

	duration := a.EndLocal.Sub(a.StartLocal).Seconds()
	row := []string{
		a.StartLocal.Format(timeLayout),
		a.EndLocal.Format(timeLayout),
		a.TargetDate.Format(dateLayout),
		strconv.FormatFloat(duration, 'f', 2, 64),
		string(a.Status),
		strconv.Itoa(a.Attempt),
		a.ErrorMessage,
		a.ReportFileName,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit row: %w", err)
	}
	return nil
}
