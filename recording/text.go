package recording

import (
	"io"
	"log"

	"github.com/sarchlab/cachesim/timing/core"
)

// TextSink writes one human-readable line per access.
type TextSink struct {
	logger *log.Logger
}

// NewTextSink creates a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{logger: log.New(w, "", 0)}
}

// Record writes the access line.
func (s *TextSink) Record(e core.AccessEvent) error {
	outcome := "miss"
	if e.Hit {
		outcome = "hit"
	}

	s.logger.Printf("%s 0x%x, set %d, tag 0x%x, %s, dirty writeback: %t, instructions: %d",
		e.Kind(), e.Address, e.SetIndex, e.Tag, outcome, e.DirtyWriteback, e.Instructions)

	return nil
}

// Close does nothing.
func (s *TextSink) Close() error {
	return nil
}
