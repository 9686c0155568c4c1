// Package csvfile reads delimiter-separated files row by row while tracking
// the byte offset of the next unread row, so a reader can be reopened later
// and seeked straight to where a previous pass stopped.
//
// Quoting follows the convention of the spreadsheet exports this importer
// receives: fields may be enclosed in double quotes, a doubled quote inside a
// quoted field is a literal quote, and a backslash inside a quoted field
// escapes the following byte (both bytes are kept).
package csvfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	quoteChar  = '"'
	escapeChar = '\\'
	bom        = "\uFEFF"
)

// ErrNoHeader is returned by ReadHeader when the file has no rows.
var ErrNoHeader = errors.New("csv has no header row")

// RowKind distinguishes data rows from rows whose fields are all blank.
type RowKind int

const (
	RowData RowKind = iota
	RowBlank
)

// Row is one decoded record.
type Row struct {
	Fields []string
	Kind   RowKind
	Offset int64 // byte offset where the row starts
}

// Reader decodes a CSV file positionally.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	delim  byte
	offset int64
	field  bytes.Buffer
}

// Open opens path for reading with the given single-byte delimiter.
func Open(path string, delimiter rune) (*Reader, error) {
	if delimiter >= utf8.RuneSelf || delimiter == quoteChar || delimiter == escapeChar ||
		delimiter == '\n' || delimiter == '\r' {
		return nil, fmt.Errorf("unsupported delimiter %q", delimiter)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &Reader{
		f:     f,
		br:    bufio.NewReaderSize(f, 64*1024),
		delim: byte(delimiter),
	}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Size returns the file size in bytes.
func (r *Reader) Size() (int64, error) {
	info, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Offset returns the byte offset of the next unread row.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Seek positions the reader at offset, which must be a row boundary
// previously returned by Offset.
func (r *Reader) Seek(offset int64) error {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}
	r.br.Reset(r.f)
	r.offset = offset
	return nil
}

// ReadHeader reads the first row of the file. A leading byte-order mark is
// skipped before decoding and every name is trimmed.
func (r *Reader) ReadHeader() ([]string, error) {
	if err := r.Seek(0); err != nil {
		return nil, err
	}
	if lead, err := r.br.Peek(len(bom)); err == nil && string(lead) == bom {
		_, _ = r.br.Discard(len(bom))
		r.offset += int64(len(bom))
	}

	fields, err := r.readRecord()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}

	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) == 1 && fields[0] == "" {
		return nil, ErrNoHeader
	}
	return fields, nil
}

// Next reads the next row. It returns io.EOF when the file is exhausted.
func (r *Reader) Next() (Row, error) {
	start := r.offset
	fields, err := r.readRecord()
	if err != nil {
		return Row{}, err
	}

	row := Row{Fields: fields, Kind: RowData, Offset: start}
	if isBlank(fields) {
		row.Kind = RowBlank
	}
	return row, nil
}

// readRecord decodes one logical record, which may span several physical
// lines when a quoted field contains newlines.
func (r *Reader) readRecord() ([]string, error) {
	var (
		fields   []string
		inQuotes bool
		consumed int64
		quoted   bool
	)
	r.field.Reset()

	endField := func() {
		fields = append(fields, r.field.String())
		r.field.Reset()
		quoted = false
	}

	for {
		b, err := r.br.ReadByte()
		if err == io.EOF {
			if consumed == 0 {
				return nil, io.EOF
			}
			endField()
			r.offset += consumed
			return fields, nil
		}
		if err != nil {
			return nil, err
		}
		consumed++

		if inQuotes {
			switch b {
			case escapeChar:
				r.field.WriteByte(b)
				if next, err := r.br.ReadByte(); err == nil {
					consumed++
					r.field.WriteByte(next)
				}
			case quoteChar:
				if next, err := r.br.Peek(1); err == nil && next[0] == quoteChar {
					_, _ = r.br.ReadByte()
					consumed++
					r.field.WriteByte(quoteChar)
					continue
				}
				inQuotes = false
			default:
				r.field.WriteByte(b)
			}
			continue
		}

		switch b {
		case r.delim:
			endField()
		case quoteChar:
			if r.field.Len() == 0 && !quoted {
				inQuotes = true
				quoted = true
			} else {
				r.field.WriteByte(b)
			}
		case '\r':
			if next, err := r.br.Peek(1); err == nil && next[0] == '\n' {
				_, _ = r.br.ReadByte()
				consumed++
			}
			endField()
			r.offset += consumed
			return fields, nil
		case '\n':
			endField()
			r.offset += consumed
			return fields, nil
		default:
			r.field.WriteByte(b)
		}
	}
}

// Fit pads fields with blanks or truncates them so the result has exactly n
// entries.
func Fit(fields []string, n int) []string {
	if len(fields) == n {
		return fields
	}
	out := make([]string, n)
	copy(out, fields)
	return out
}

func isBlank(fields []string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
