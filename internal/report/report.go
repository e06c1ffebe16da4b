// Package report writes the snapshot CSV emitted by each successful extraction.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
	"github.com/guttosm/powerpulse/internal/logger"
)

const (
	fileTimeLayout = "20060102_1504"
	filePrefix     = "PowerPosition_"
	header         = "LocalTime,Volume"
)

// Sink persists position snapshots as PowerPosition_<YYYYMMDD>_<HHMM>.csv files.
//
// A single mutex serializes concurrent writes. Filenames are minute-resolution,
// so a rerun within the same minute overwrites its predecessor; snapshots are
// idempotent by filename.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// NewSink validates and ensures the output directory and returns the sink.
// An empty directory is a configuration error.
func NewSink(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("report output directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory %s: %w", dir, err)
	}
	return &Sink{dir: dir}, nil
}

// Write persists one snapshot and returns its full path.
//
// The file is UTF-8 text: a "LocalTime,Volume" header followed by one line per
// position in the given order, volumes rendered with exactly two fractional
// digits (locale independent, ties to even). extractionLocal supplies the
// filename's local-zone date and minute components.
//
// A position count other than 24 is logged as a warning but still written;
// completeness is the caller's invariant to enforce.
func (s *Sink) Write(ctx context.Context, positions []models.Position, extractionLocal time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(positions) != 24 {
		logger.L().Warn().Int("positions", len(positions)).Msg("snapshot does not carry 24 positions")
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteByte('\n')
	for _, p := range positions {
		buf.WriteString(p.LocalTime)
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatFloat(p.Volume, 'f', 2, 64))
		buf.WriteByte('\n')
	}

	name := filePrefix + extractionLocal.Format(fileTimeLayout) + ".csv"
	path := filepath.Join(s.dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}

	logger.L().Info().Str("file", name).Int("positions", len(positions)).Msg("snapshot written")
	return path, nil
}
