package streaming

import "strings"

// DefaultBatchRunes is the flush point for accumulated text.
const DefaultBatchRunes = 80

// Batcher coalesces text deltas into larger Text chunks so the sink is
// not called once per token. Flushes happen when the buffer reaches the
// batch size, before any non-text chunk, and at stream end.
type Batcher struct {
	sink  Sink
	buf   strings.Builder
	runes int
	limit int
}

// NewBatcher creates a Batcher writing to sink.
func NewBatcher(sink Sink) *Batcher {
	return &Batcher{sink: sink, limit: DefaultBatchRunes}
}

// WriteText buffers a text delta, flushing when the batch is full.
func (b *Batcher) WriteText(s string) {
	if s == "" {
		return
	}
	b.buf.WriteString(s)
	b.runes += len([]rune(s))
	if b.runes >= b.limit {
		b.Flush()
	}
}

// Emit flushes buffered text and forwards the chunk, preserving order.
func (b *Batcher) Emit(c Chunk) {
	b.Flush()
	b.sink(c)
}

// Flush delivers any buffered text as a single Text chunk.
func (b *Batcher) Flush() {
	if b.buf.Len() == 0 {
		return
	}
	b.sink(&Text{Content: b.buf.String()})
	b.buf.Reset()
	b.runes = 0
}
