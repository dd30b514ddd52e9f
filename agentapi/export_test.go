package agentapi

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/parleyhq/parley"
)

// DefaultKind exports defaultKind for testing.
const DefaultKind = defaultKind

// Frame exports frame for testing.
type Frame struct {
	Kind    string
	Payload string
}

// LineScanner exports lineScanner for testing.
type LineScanner struct {
	s *lineScanner
}

func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{s: newLineScanner(r)}
}

func (s *LineScanner) Next() (string, error) {
	return s.s.next()
}

// FrameAssembler exports frameAssembler for testing.
type FrameAssembler struct {
	asm frameAssembler
}

func (a *FrameAssembler) Feed(line string) (Frame, bool) {
	f, ok := a.asm.feed(line)
	return Frame{Kind: f.kind, Payload: f.payload}, ok
}

func (a *FrameAssembler) Flush() (Frame, bool) {
	f, ok := a.asm.flush()
	return Frame{Kind: f.kind, Payload: f.payload}, ok
}

// DecodeFrame exports decodeFrame for testing.
func DecodeFrame(f Frame, logger *log.Logger) []parley.Event {
	return decodeFrame(frame{kind: f.Kind, payload: f.Payload}, logger)
}
