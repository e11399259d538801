package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"basic-cleaning/models"
)

// ErrNoHeader is returned when a CSV file has no header row.
var ErrNoHeader = errors.New("csv: no header row")

// ReadDataset loads a comma-delimited file with a header line.
// Rows may be shorter or longer than the header; missing cells read as "".
func ReadDataset(path string) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	ds, err := DecodeDataset(f)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return ds, nil
}

// DecodeDataset reads a header and all rows from r.
func DecodeDataset(r io.Reader) (models.Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return models.Dataset{}, ErrNoHeader
	}
	if err != nil {
		return models.Dataset{}, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	ds := models.Dataset{Header: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Dataset{}, err
		}
		line, _ := reader.FieldPos(0)
		ds.Records = append(ds.Records, models.Record{Line: line, Fields: row})
	}
	return ds, nil
}

// CSVWriter writes a dataset header and rows to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{path: path, file: f, writer: w}, nil
}

// Write appends records in order.
func (c *CSVWriter) Write(records []models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if err := c.writer.Write(r.Fields); err != nil {
			return fmt.Errorf("csv: write row %d: %w", r.Line, err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Path returns the file being written.
func (c *CSVWriter) Path() string {
	return c.path
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// WriteDataset writes ds to path, header first.
func WriteDataset(path string, ds models.Dataset) error {
	w, err := NewCSVWriter(path, ds.Header)
	if err != nil {
		return err
	}
	if err := w.Write(ds.Records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
