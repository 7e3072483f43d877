// Package scorelog persists the per-chunk scoring inputs as append-only
// CSV, one row per processed chunk. Rows are flushed as they are written
// so a crash loses at most the in-flight row.
package scorelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Logger writes one CSV file per scoring session.
// Files are saved as: <dir>/<source>_<date>_<time>.csv
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	source  string
	session string
}

func NewLogger(dir, source string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create scorelog dir: %w", err)
	}

	session := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.csv", sanitize(source), session)

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil, fmt.Errorf("create scorelog file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{"timestamp", "words", "average_amplitude"})
	w.Flush()

	return &Logger{
		file:    f,
		writer:  w,
		source:  source,
		session: session,
	}, nil
}

// Write appends one chunk row: the covered time range, the
// delimiter-joined token string, and the loudness scalar.
func (l *Logger) Write(start, end float64, words string, loudness float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == nil {
		return
	}
	l.writer.Write([]string{
		fmt.Sprintf("%s-%s", formatSeconds(start), formatSeconds(end)),
		words,
		strconv.FormatFloat(loudness, 'f', -1, 64),
	})
	l.writer.Flush()
}

// Close flushes and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		l.writer.Flush()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the file path.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sanitize makes a filename-safe string; source IDs are usually URLs.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	const maxName = 80
	if len(out) > maxName {
		out = out[len(out)-maxName:]
	}
	return string(out)
}

// FileInfo describes a scoring log file.
type FileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time"`
}

// ListFiles returns all scoring log files, newest first.
func ListFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []FileInfo
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}
	return files, nil
}
