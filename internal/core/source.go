package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RecordSource yields raw records in source order. Next returns io.EOF
// after the last record.
//
// A *csv.ParseError (or any error wrapping ErrRecordRejected) rejects only
// the current record; the pipeline keeps reading. Any other error ends the
// run as a stream failure.
type RecordSource interface {
	Next() (Record, error)
}

// CSVSource decodes a header-keyed delimited stream.
type CSVSource struct {
	reader  *csv.Reader
	counter *CountingReader
	header  []string
}

// NewCSVSource reads the header row from r. size is the input length if
// known, used only for progress reporting.
func NewCSVSource(r io.Reader, size int64) (*CSVSource, error) {
	body, counter := WrapForStreaming(r, size)

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewError(ErrStream, "empty file: no header row", nil)
		}
		return nil, NewError(ErrStream, "read header row", err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}

	return &CSVSource{reader: reader, counter: counter, header: cols}, nil
}

// Header returns the trimmed column names.
func (s *CSVSource) Header() []string {
	return s.header
}

// Progress returns the percentage of input consumed, 0 if the size is unknown.
func (s *CSVSource) Progress() int {
	return s.counter.Progress()
}

// Next returns the next record. Blank lines are skipped by the decoder.
// Line numbers count the header as line 1.
func (s *CSVSource) Next() (Record, error) {
	row, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Record{Line: parseErr.StartLine}, NewError(ErrRecordRejected,
				fmt.Sprintf("line %d: invalid csv", parseErr.StartLine), err)
		}
		return Record{}, NewError(ErrStream, "read record", err)
	}

	line, _ := s.reader.FieldPos(0)

	fields := make(map[string]string, len(s.header))
	for i, col := range s.header {
		if i < len(row) {
			fields[col] = row[i]
		}
	}

	return Record{Line: line, Fields: fields}, nil
}

// SliceSource replays in-memory records.
type SliceSource struct {
	records []Record
	next    int
}

// NewSliceSource numbers records from line 2 when Line is unset.
func NewSliceSource(records []Record) *SliceSource {
	out := make([]Record, len(records))
	for i, r := range records {
		if r.Line == 0 {
			r.Line = i + 2
		}
		out[i] = r
	}
	return &SliceSource{records: out}
}

func (s *SliceSource) Next() (Record, error) {
	if s.next >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.next]
	s.next++
	return r, nil
}
