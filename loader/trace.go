// Package loader reads memory-access traces.
//
// A trace holds one record per line:
//
//	# <is_write:0|1> <address in hex> <instruction count>
//
// Fields are whitespace separated. The address may carry a 0x prefix. Blank
// lines are ignored.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// RecordMarker starts every trace record.
const RecordMarker = "#"

// MaxLineLength is the longest line, in bytes, that is parsed. Longer lines
// are reported as malformed records.
const MaxLineLength = 1 << 20

var (
	// ErrTraceUnavailable is returned when a trace cannot be opened or read.
	ErrTraceUnavailable = errors.New("trace unavailable")

	// ErrMalformedRecord is returned when a trace line does not match the
	// record format.
	ErrMalformedRecord = errors.New("malformed trace record")
)

// Record is one memory access of a trace.
type Record struct {
	// IsWrite is true for stores.
	IsWrite bool
	// Address is the accessed byte address.
	Address uint64
	// Instructions is the number of instructions executed since the
	// previous access, including this one.
	Instructions uint64
}

// MalformedRecordError describes a trace line that could not be parsed.
type MalformedRecordError struct {
	Source string
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s (%q)", e.Source, e.Line, ErrMalformedRecord, e.Reason, e.Text)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// ParseLine parses a single trace record. The returned error, if any, wraps
// ErrMalformedRecord.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) > 0 && fields[0] != RecordMarker && strings.HasPrefix(fields[0], RecordMarker) {
		// Marker glued to the first field, e.g. "#1 7fff 3".
		fields = append([]string{RecordMarker, fields[0][len(RecordMarker):]}, fields[1:]...)
	}

	if len(fields) != 4 || fields[0] != RecordMarker {
		return Record{}, fmt.Errorf("%w: expected \"%s <0|1> <hex address> <instructions>\"",
			ErrMalformedRecord, RecordMarker)
	}

	var rec Record
	switch fields[1] {
	case "0":
	case "1":
		rec.IsWrite = true
	default:
		return Record{}, fmt.Errorf("%w: access type %q is not 0 or 1", ErrMalformedRecord, fields[1])
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(fields[2], "0x"), "0X")
	addr, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad address %q", ErrMalformedRecord, fields[2])
	}
	rec.Address = addr

	instructions, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil || instructions < 0 {
		return Record{}, fmt.Errorf("%w: bad instruction count %q", ErrMalformedRecord, fields[3])
	}
	rec.Instructions = uint64(instructions)

	return rec, nil
}

// TraceReader yields the records of a trace in order.
type TraceReader struct {
	name   string
	reader *bufio.Reader
	closer io.Closer
	line   int
	eof    bool
}

// NewTraceReader reads records from r. name is used in error messages.
func NewTraceReader(r io.Reader, name string) *TraceReader {
	t := &TraceReader{
		name:   name,
		reader: bufio.NewReader(r),
	}

	if c, ok := r.(io.Closer); ok {
		t.closer = c
	}

	return t
}

// Open opens a trace file.
func Open(path string) (*TraceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTraceUnavailable, err)
	}

	return NewTraceReader(f, path), nil
}

// Name returns the name of the trace.
func (t *TraceReader) Name() string {
	return t.name
}

// Line returns the number of the last line read.
func (t *TraceReader) Line() int {
	return t.line
}

// Next returns the next record. It returns io.EOF once the trace is
// exhausted, a *MalformedRecordError for a bad line, and an error wrapping
// ErrTraceUnavailable if reading fails. Reading may continue after a
// malformed record.
func (t *TraceReader) Next() (Record, error) {
	for !t.eof {
		text, tooLong, err := t.readLine()
		if err != nil {
			return Record{}, fmt.Errorf("%w: %s: %w", ErrTraceUnavailable, t.name, err)
		}
		if t.eof && text == "" && !tooLong {
			break
		}
		t.line++

		if tooLong {
			return Record{}, &MalformedRecordError{
				Source: t.name,
				Line:   t.line,
				Text:   text[:64] + "...",
				Reason: fmt.Sprintf("line longer than %d bytes", MaxLineLength),
			}
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := ParseLine(text)
		if err != nil {
			return Record{}, &MalformedRecordError{
				Source: t.name,
				Line:   t.line,
				Text:   text,
				Reason: strings.TrimPrefix(err.Error(), ErrMalformedRecord.Error()+": "),
			}
		}

		return rec, nil
	}

	return Record{}, io.EOF
}

// readLine returns the next line without its terminator. Lines longer than
// MaxLineLength are consumed to the end and returned truncated with tooLong
// set.
func (t *TraceReader) readLine() (text string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := t.reader.ReadLine()
		if errors.Is(err, io.EOF) {
			t.eof = true
			return string(buf), tooLong, nil
		}
		if err != nil {
			return "", false, err
		}

		if !tooLong {
			if len(buf)+len(chunk) > MaxLineLength {
				tooLong = true
				buf = append(buf, chunk[:MaxLineLength-len(buf)]...)
			} else {
				buf = append(buf, chunk...)
			}
		}

		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// Close releases the underlying file, if any. It is safe to call more than
// once.
func (t *TraceReader) Close() error {
	if t.closer == nil {
		return nil
	}

	err := t.closer.Close()
	t.closer = nil

	return err
}
