// Package history implements the ordered buffer of completed prompt/answer
// exchanges for the in-progress wizard session. The buffer is the source of
// truth for replay after a back-navigation restart: its length always equals
// the number of steps completed in the logical session, no matter how many
// underlying runs it took to get there.
package history

import "github.com/sushiljain1989/yeoman-ui/pkg/prompt"

// Buffer is an ordered sequence of step records. Append-only during live
// progress; truncated when the user navigates back; cleared only on a fresh
// generator selection.
type Buffer struct {
	records []prompt.StepRecord
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds a completed step record at the end.
func (b *Buffer) Append(rec prompt.StepRecord) {
	b.records = append(b.records, rec)
}

// Set overwrites the record at position, or appends when position is the
// next free slot. Used while replaying: serving a recorded answer re-writes
// the same content, keeping the buffer idempotent across restarts.
func (b *Buffer) Set(position int, rec prompt.StepRecord) {
	if position >= 0 && position < len(b.records) {
		b.records[position] = rec
		return
	}
	if position == len(b.records) {
		b.records = append(b.records, rec)
	}
}

// Truncate keeps records [0, index) and discards the rest. A no-op when
// index is at or beyond the current length.
func (b *Buffer) Truncate(index int) {
	if index < 0 {
		index = 0
	}
	if index < len(b.records) {
		b.records = b.records[:index]
	}
}

// Clear empties the buffer. Called on fresh generator selection only —
// history must survive restarts triggered by back-navigation.
func (b *Buffer) Clear() {
	b.records = nil
}

// RecordedAt returns the record at position. The second return is false when
// the position is out of range, which always ends a replay.
func (b *Buffer) RecordedAt(position int) (prompt.StepRecord, bool) {
	if position < 0 || position >= len(b.records) {
		return prompt.StepRecord{}, false
	}
	return b.records[position], true
}

// Len returns the number of recorded steps.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Records returns the recorded steps in order. The returned slice is the
// buffer's backing storage; callers must not mutate it.
func (b *Buffer) Records() []prompt.StepRecord {
	return b.records
}
