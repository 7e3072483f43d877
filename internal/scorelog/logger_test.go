package scorelog

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
)

func TestLogger_WritesRowsIncrementally(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLogger(dir, "http://example.com/game.mp4")
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	l.Write(0, 5, "touchdown;by;the;home;team", 0.91)

	// Rows must be readable before Close: each write is flushed.
	rows := readRows(t, l.Path())
	if len(rows) != 2 {
		t.Fatalf("rows = %d before Close, want header + 1", len(rows))
	}

	l.Write(5, 10, "replay;under;review", 0.2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rows = readRows(t, l.Path())
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	header := rows[0]
	if header[0] != "timestamp" || header[1] != "words" || header[2] != "average_amplitude" {
		t.Errorf("header = %v", header)
	}
	if rows[1][0] != "0-5" || rows[1][1] != "touchdown;by;the;home;team" || rows[1][2] != "0.91" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "5-10" {
		t.Errorf("row 2 timestamp = %q, want 5-10", rows[2][0])
	}
}

func TestLogger_SanitizesSourceInFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLogger(dir, "https://cdn.example.com/live/stream?id=7")
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer l.Close()

	name := l.Path()
	for _, forbidden := range []string{"/live/", ":", "?"} {
		if strings.Contains(strings.TrimPrefix(name, dir), forbidden) {
			t.Errorf("filename %q contains %q", name, forbidden)
		}
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	t.Parallel()

	files, err := ListFiles("/nonexistent/scorelogs")
	if err != nil || files != nil {
		t.Errorf("ListFiles(missing) = %v, %v; want nil, nil", files, err)
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
