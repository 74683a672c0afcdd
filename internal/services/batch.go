package services

import (
	"archive/zip"
	"context"
	"io"
	"time"

	"DF-APPT/internal/models"
	"DF-APPT/internal/rules"

	"go.uber.org/zap"
)

type BatchState int

const (
	StateIdle BatchState = iota
	StateStreaming
	StateFinalizing
	StateDone
	StateAborted
)

func (s BatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// BatchResult describes how far a batch got.
type BatchResult struct {
	State BatchState
	// Entries holds the archive paths written, in order.
	Entries []string
	// Bytes is the number of archive bytes handed to the sink.
	Bytes int64
	// Committed reports whether the sink had emitted output when the batch ended.
	Committed bool
}

// BatchArchiver turns records into a zip archive, one letter per record,
// writing each entry to the sink as soon as it is rendered.
type BatchArchiver struct {
	rules    rules.Provider
	renderer Renderer
	logger   *zap.Logger
	now      func() time.Time
}

func NewBatchArchiver(provider rules.Provider, renderer Renderer, logger *zap.Logger) *BatchArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchArchiver{
		rules:    provider,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

// batch is the state of one Run call.
type batch struct {
	state   BatchState
	sink    Sink
	counter *countingWriter
	entries []string
	logger  *zap.Logger
}

func (b *batch) transition(to BatchState) {
	b.logger.Debug("Batch state change",
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

func (b *batch) result() BatchResult {
	return BatchResult{
		State:     b.state,
		Entries:   b.entries,
		Bytes:     b.counter.n,
		Committed: b.sink.Committed(),
	}
}

// abort stops the batch without finishing the archive. Bytes already
// flushed stay with the client as a truncated archive.
func (b *batch) abort(err error) (BatchResult, error) {
	b.transition(StateAborted)
	result := b.result()
	b.logger.Error("Batch aborted",
		zap.Int("entries", len(result.Entries)),
		zap.Int64("bytes", result.Bytes),
		zap.Bool("committed", result.Committed),
		zap.Error(err),
	)
	return result, err
}

// Run processes records strictly in order. The first failing record stops
// the batch; nothing after it is rendered.
func (a *BatchArchiver) Run(ctx context.Context, records []models.Record, sink Sink) (BatchResult, error) {
	b := &batch{
		state:   StateIdle,
		sink:    sink,
		counter: &countingWriter{w: sink},
		logger:  a.logger,
	}

	if len(records) == 0 {
		return b.result(), &InputError{Message: MsgNoRows}
	}

	// One table per batch, even if the rule file is reloaded meanwhile.
	table := a.rules.Table()
	ext := a.renderer.Extension()

	zw := zip.NewWriter(b.counter)
	b.transition(StateStreaming)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return b.abort(&StreamError{Message: "request cancelled", Cause: err})
		}

		rule := table.Select(rec)
		data := Normalize(rec)
		path := EntryPath(rule.Folder, BuildFilename(rec), ext)

		content, err := a.renderer.Render(ctx, rule.TemplateID, data)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return b.abort(&StreamError{Message: "request cancelled", Cause: ctxErr})
			}
			return b.abort(&RenderError{
				Index:      i,
				Name:       data[models.FieldName],
				TemplateID: rule.TemplateID,
				Cause:      err,
			})
		}

		if err := a.appendEntry(zw, models.ArchiveEntry{Path: path, Content: content}); err != nil {
			return b.abort(&StreamError{Message: "failed to write archive entry", Cause: err})
		}
		if err := sink.Flush(); err != nil {
			return b.abort(&StreamError{Message: "failed to flush archive", Cause: err})
		}

		b.entries = append(b.entries, path)
		a.logger.Debug("Archive entry written",
			zap.Int("record", i+1),
			zap.String("path", path),
			zap.String("template", rule.TemplateID),
			zap.Int("size", len(content)),
		)
	}

	b.transition(StateFinalizing)
	if err := zw.Close(); err != nil {
		return b.abort(&StreamError{Message: "failed to finish archive", Cause: err})
	}
	if err := sink.Flush(); err != nil {
		return b.abort(&StreamError{Message: "failed to flush archive", Cause: err})
	}
	b.transition(StateDone)

	result := b.result()
	a.logger.Info("archive stream ended",
		zap.Int("entries", len(result.Entries)),
		zap.Int64("bytes", result.Bytes),
	)
	return result, nil
}

func (a *BatchArchiver) appendEntry(zw *zip.Writer, entry models.ArchiveEntry) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.Path,
		Method:   zip.Deflate,
		Modified: a.now(),
	})
	if err != nil {
		return err
	}
	if _, err := w.Write(entry.Content); err != nil {
		return err
	}
	// zip.Writer buffers internally; push the entry out to the sink now.
	return zw.Flush()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}
