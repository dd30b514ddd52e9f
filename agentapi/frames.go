package agentapi

import (
	"bytes"
	"io"
	"strings"
)

// frame is one undispatched event unit from the wire: a declared kind plus
// its raw payload. The kind is always set before the payload is interpreted.
type frame struct {
	kind    string
	payload string
}

// defaultKind is assumed for data lines with no preceding kind marker, for
// backward compatibility with older service builds that emitted bare data.
const defaultKind = "message"

// lineScanner yields decoded text lines from a streaming response body.
//
// It pulls raw chunks from the transport and keeps the trailing partial
// segment in a carry-over buffer, so a line (or a multi-byte rune) split
// across reads is never corrupted or dropped. The buffer holds exactly the
// suffix not yet resolved into a complete line. On end of stream a non-empty
// remainder is flushed as a final line.
type lineScanner struct {
	r     io.Reader
	read  []byte
	carry []byte
	lines []string
	err   error // terminal transport error or io.EOF
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{
		r:    r,
		read: make([]byte, 4096),
	}
}

// next returns the next complete line without its terminator. It returns
// io.EOF after the final line, or the transport's error verbatim. Complete
// lines buffered before a transport failure are still yielded first.
func (s *lineScanner) next() (string, error) {
	for {
		if len(s.lines) > 0 {
			line := s.lines[0]
			s.lines = s.lines[1:]
			return line, nil
		}
		if s.err != nil {
			if s.err == io.EOF && len(s.carry) > 0 {
				line := chompCR(string(s.carry))
				s.carry = nil
				return line, nil
			}
			return "", s.err
		}
		s.fill()
	}
}

// fill performs one transport read and resolves any newly completed lines
// out of the carry-over buffer.
func (s *lineScanner) fill() {
	n, err := s.r.Read(s.read)
	if n > 0 {
		s.carry = append(s.carry, s.read[:n]...)
		for {
			i := bytes.IndexByte(s.carry, '\n')
			if i < 0 {
				break
			}
			s.lines = append(s.lines, chompCR(string(s.carry[:i])))
			s.carry = s.carry[i+1:]
		}
	}
	if err != nil {
		s.err = err
	}
}

// chompCR strips a trailing carriage return so CRLF streams parse like LF.
func chompCR(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// frameAssembler groups lines into frames.
//
// An "event:" marker sets the pending kind; "data:" lines accumulate the
// payload, joined with newlines to preserve multi-line values; a blank line
// closes the frame. A kind marker arriving mid-frame is always a frame
// boundary: the previous frame is closed first. Stray blank lines and ":"
// comment lines are skipped.
type frameAssembler struct {
	kind    string
	hasKind bool
	data    []string
}

// feed consumes one line and reports a completed frame, if any.
func (a *frameAssembler) feed(line string) (frame, bool) {
	if line == "" {
		return a.flush()
	}
	if strings.HasPrefix(line, ":") {
		return frame{}, false
	}
	if kind, ok := markerValue(line, "event"); ok {
		f, done := a.flush()
		a.kind = kind
		a.hasKind = true
		return f, done
	}
	if value, ok := markerValue(line, "data"); ok {
		a.data = append(a.data, value)
		return frame{}, false
	}
	// Unknown field names are ignored per the wire convention.
	return frame{}, false
}

// flush closes and returns the pending frame. Data with no declared kind
// completes under the default kind. An empty assembler yields nothing, so
// stray blank lines are harmless.
func (a *frameAssembler) flush() (frame, bool) {
	if !a.hasKind && len(a.data) == 0 {
		return frame{}, false
	}
	f := frame{kind: a.kind, payload: strings.Join(a.data, "\n")}
	if !a.hasKind {
		f.kind = defaultKind
	}
	a.kind = ""
	a.hasKind = false
	a.data = nil
	return f, true
}

// markerValue matches "field: value" lines. A single space after the colon
// is optional and stripped.
func markerValue(line, field string) (string, bool) {
	rest, ok := strings.CutPrefix(line, field+":")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
