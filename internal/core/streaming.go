package core

// streaming.go prepares a raw feed for the CSV decoder without buffering
// the whole input:
//
//   - bomReader drops a leading UTF-8 byte order mark
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader tracks raw bytes consumed for run progress
//
// WrapForStreaming applies all three.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomReader skips a UTF-8 BOM at the very start of the stream.
type bomReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMReader(r io.Reader) *bomReader {
	return &bomReader{r: bufio.NewReader(r)}
}

func (b *bomReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte sequence split
// across two reads is carried over to the next read.
type utf8Sanitizer struct {
	r     io.Reader
	carry []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := copy(p, s.carry)
	s.carry = s.carry[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

// sanitize fixes buf in place and returns the number of bytes to emit.
func (s *utf8Sanitizer) sanitize(buf []byte, atEOF bool) int {
	w := 0
	for r := 0; r < len(buf); {
		if buf[r] < utf8.RuneSelf {
			buf[w] = buf[r]
			w++
			r++
			continue
		}

		rest := buf[r:]
		if !atEOF && !utf8.FullRune(rest) {
			s.carry = append(s.carry, rest...)
			return w
		}

		ch, size := utf8.DecodeRune(rest)
		if ch == utf8.RuneError && size == 1 {
			buf[w] = '?'
			w++
			r++
			continue
		}
		copy(buf[w:], rest[:size])
		w += size
		r += size
	}
	return w
}

// CountingReader counts bytes read. BytesRead is safe to call from another
// goroutine while the run is reading.
type CountingReader struct {
	r     io.Reader
	read  atomic.Int64
	Total int64 // 0 if unknown
}

// NewCountingReader wraps r. total is the expected size, or 0.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (c *CountingReader) BytesRead() int64 {
	return c.read.Load()
}

// Progress returns the percentage read, or 0 when the total is unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	pct := int(c.BytesRead() * 100 / c.Total)
	if pct > 100 {
		return 100
	}
	return pct
}

// WrapForStreaming strips a BOM and sanitizes UTF-8. The returned counter
// sees the raw bytes, so its progress matches the input size.
func WrapForStreaming(r io.Reader, totalSize int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, totalSize)
	return newUTF8Sanitizer(newBOMReader(counter)), counter
}
