package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guttosm/powerpulse/internal/domain/models"
)

func fullPositions(volume float64) []models.Position {
	out := make([]models.Position, 0, 24)
	clock := []string{
		"23:00", "00:00", "01:00", "02:00", "03:00", "04:00", "05:00", "06:00",
		"07:00", "08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00",
		"15:00", "16:00", "17:00", "18:00", "19:00", "20:00", "21:00", "22:00",
	}
	for k := 1; k <= 24; k++ {
		out = append(out, models.Position{LocalTime: clock[k-1], Volume: volume, Period: k})
	}
	return out
}

func TestWrite_FilenameAndContent(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	local := time.Date(2025, 12, 10, 14, 5, 0, 0, time.UTC)
	path, err := sink.Write(context.Background(), fullPositions(100), local)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if filepath.Base(path) != "PowerPosition_20251210_1405.csv" {
		t.Fatalf("filename = %s, want PowerPosition_20251210_1405.csv", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 25 {
		t.Fatalf("lines = %d, want 25 (header + 24)", len(lines))
	}
	if lines[0] != "LocalTime,Volume" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "23:00,100.00" {
		t.Fatalf("first row = %q, want 23:00,100.00", lines[1])
	}
	for _, line := range lines[1:] {
		if !strings.HasSuffix(line, ",100.00") {
			t.Fatalf("row %q not rendered with two decimals", line)
		}
	}
}

func TestWrite_VolumeFormatting(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	cases := []struct {
		volume float64
		want   string
	}{
		{100, "100.00"},
		{1.005, "1.00"}, // binary 1.005 is just under; ties-to-even on the stored value
		{-42.5, "-42.50"},
		{0.125, "0.12"},
		{0.375, "0.38"},
	}
	for _, tc := range cases {
		ps := fullPositions(tc.volume)
		path, err := sink.Write(context.Background(), ps, time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), ","+tc.want+"\n") {
			t.Fatalf("volume %v not rendered as %s:\n%s", tc.volume, tc.want, data)
		}
	}
}

func TestWrite_SameMinuteOverwrites(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	local := time.Date(2025, 12, 10, 14, 5, 0, 0, time.UTC)

	p1, err := sink.Write(context.Background(), fullPositions(1), local)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	p2, err := sink.Write(context.Background(), fullPositions(2), local)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("same-minute reruns should share a filename: %s vs %s", p1, p2)
	}
	data, _ := os.ReadFile(p2)
	if !strings.Contains(string(data), "2.00") || strings.Contains(string(data), "1.00") {
		t.Fatalf("rerun did not overwrite: %s", data)
	}
}

func TestWrite_ShortSnapshotWarnsButWrites(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	short := fullPositions(7)[:3]
	path, err := sink.Write(context.Background(), short, time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3", len(lines))
	}
}

func TestWrite_CancelledContext(t *testing.T) {
	sink, err := NewSink(t.TempDir())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sink.Write(ctx, fullPositions(1), time.Now()); err == nil {
		t.Fatalf("write with cancelled context should fail")
	}
}

func TestNewSink_EmptyDirRejected(t *testing.T) {
	if _, err := NewSink(""); err == nil {
		t.Fatalf("empty directory should be rejected at construction")
	}
}

func TestNewSink_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	if _, err := NewSink(dir); err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}
