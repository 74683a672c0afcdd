package services

import (
	"bytes"
	"io"
)

// Sink receives archive bytes. Once Committed reports true the client has
// seen output and an error response is no longer possible.
type Sink interface {
	io.Writer
	Flush() error
	Committed() bool
}

// WriterSink streams to any writer, such as a file opened by the CLI.
type WriterSink struct {
	w       io.Writer
	written int64
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *WriterSink) Flush() error {
	if f, ok := s.w.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

func (s *WriterSink) Committed() bool {
	return s.written > 0
}

// BufferSink holds the whole archive in memory and never commits, so any
// failure can still be reported cleanly.
type BufferSink struct {
	bytes.Buffer
}

func (s *BufferSink) Flush() error {
	return nil
}

func (s *BufferSink) Committed() bool {
	return false
}
