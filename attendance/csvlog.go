// Package attendance decides whether a recognition event becomes a durable
// attendance record, and appends accepted records to the attendance log.
package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// Record is one accepted attendance event, ordered by insertion time.
type Record struct {
	Date       string
	Time       string
	Name       string
	ExternalID string
}

var csvHeader = []string{"Date", "Time", "Name", "Roll_Number"}

// CSVLog is the append-only, header-prefixed attendance log. The header row
// is written the first time the file is created.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

func (l *CSVLog) Path() string {
	return l.path
}

// Append writes one record, creating the file with its header row first if
// the log does not exist yet.
func (l *CSVLog) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open attendance log '%s': %w", l.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat attendance log '%s': %w", l.path, err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write attendance log header: %w", err)
		}
	}
	if err := writer.Write([]string{rec.Date, rec.Time, rec.Name, rec.ExternalID}); err != nil {
		return fmt.Errorf("failed to append attendance record: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush attendance log: %w", err)
	}
	return nil
}

// ReadAll returns the raw tabular bytes of the log. A missing log reports
// os.ErrNotExist so callers can answer not-found instead of failing.
func (l *CSVLog) ReadAll() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.ReadFile(l.path)
}
