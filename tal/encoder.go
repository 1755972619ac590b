package tal

// Encoder renders the annotation-channel blocks for successive data records.
//
// Annotations are queued in insertion order and each one is emitted into
// exactly one (record, channel) slot: the record whose time window covers
// its onset at the moment that record is encoded, and the channel chosen by
// round-robin over the insertion index. Records are encoded strictly in
// increasing order with no backtracking, so an annotation queued after the
// record covering its onset has been encoded can never be placed; it is
// dropped silently. Space exhaustion inside a 120-byte slot likewise drops
// annotations silently. Both are deliberate lossy behaviors of the format,
// surfaced only through the Dropped counter.
//
// Note: The Encoder is NOT thread-safe. Each instance belongs to a single
// writer.
type Encoder struct {
	pending        []queued
	channels       int
	recordDuration int64 // ticks
	subsecond      int64 // ticks, stamped into record timestamps
	nextIndex      int
	dropped        int
}

type queued struct {
	ann   Annotation
	index int // insertion index, drives round-robin channel placement
}

// ChannelFor returns the annotation channel an annotation occupies, as a
// pure function of its insertion index and the configured channel count.
func ChannelFor(insertionIndex, channelCount int) int {
	return insertionIndex % channelCount
}

// NewEncoder creates an encoder for the given channel count (1-64), data
// record duration in ticks, and subsecond start offset in ticks.
func NewEncoder(channels int, recordDuration, subsecondStart int64) *Encoder {
	return &Encoder{
		channels:       channels,
		recordDuration: recordDuration,
		subsecond:      subsecondStart,
	}
}

// Add queues an annotation for placement. Validation (non-negative onset,
// non-empty bounded description) is the caller's concern; the encoder
// accepts whatever it is handed.
func (e *Encoder) Add(ann Annotation) {
	e.pending = append(e.pending, queued{ann: ann, index: e.nextIndex})
	e.nextIndex++
}

// Pending returns the number of queued annotations not yet encoded.
func (e *Encoder) Pending() int {
	return len(e.pending)
}

// Dropped returns the number of annotations silently lost so far, whether
// to slot-space exhaustion or to onsets behind the encode cursor.
func (e *Encoder) Dropped() int {
	return e.dropped
}

// DiscardPending drops every still-queued annotation. Called at finalize
// time: whatever remains has an onset at or beyond the end of the written
// file and can never be covered by a record.
func (e *Encoder) DiscardPending() {
	e.dropped += len(e.pending)
	e.pending = e.pending[:0]
}

// EncodeRecord produces one 120-byte block per channel for the data record
// at recordIndex, consuming every queued annotation whose onset falls inside
// the record's window and dropping those the cursor has already passed.
//
// Channel 0 always begins with the timestamp pseudo-annotation
// "+<start>\x14\x14\x00" stamping the record's start time (subsecond offset
// included), which readers use for continuity checking.
func (e *Encoder) EncodeRecord(recordIndex int64) [][]byte {
	recordStart := recordIndex * e.recordDuration
	recordEnd := recordStart + e.recordDuration

	blocks := make([][]byte, e.channels)
	full := make([]bool, e.channels)
	for c := range blocks {
		blocks[c] = make([]byte, 0, AnnotationBytes)
	}

	stamp := "+" + FormatTicks(recordStart + e.subsecond)
	blocks[0] = append(blocks[0], stamp...)
	blocks[0] = append(blocks[0], 0x14, 0x14, 0x00)

	remaining := e.pending[:0]
	for _, q := range e.pending {
		switch {
		case q.ann.Onset >= recordEnd:
			remaining = append(remaining, q)
		case q.ann.Onset < recordStart:
			// Added after its covering record was already written.
			e.dropped++
		default:
			c := ChannelFor(q.index, e.channels)
			if full[c] {
				e.dropped++
				continue
			}
			block, ok := appendUnit(blocks[c], q.ann)
			if !ok {
				full[c] = true
				e.dropped++
				continue
			}
			blocks[c] = block
		}
	}
	e.pending = remaining

	for c := range blocks {
		padded := make([]byte, AnnotationBytes)
		copy(padded, blocks[c])
		blocks[c] = padded
	}

	return blocks
}

// appendUnit appends one annotation unit to block, truncating the
// description to whatever fits (capped at MaxDescriptionBytes). It reports
// false when even the onset/duration prefix plus the two field terminators
// cannot fit in the space left before the block's mandatory trailing NUL.
func appendUnit(block []byte, ann Annotation) ([]byte, bool) {
	prefix := "+" + FormatTicks(ann.Onset)
	if ann.Duration >= 0 {
		prefix += "\x15" + FormatTicks(ann.Duration)
	}

	// One byte stays reserved for the block's trailing 0x00.
	space := AnnotationBytes - 1 - len(block)
	if len(prefix)+2 > space {
		return block, false
	}

	maxDesc := space - len(prefix) - 2
	if maxDesc > MaxDescriptionBytes {
		maxDesc = MaxDescriptionBytes
	}
	desc := ann.Description
	if len(desc) > maxDesc {
		desc = desc[:maxDesc]
	}

	block = append(block, prefix...)
	block = append(block, 0x14)
	block = append(block, desc...)
	block = append(block, 0x14)

	return block, true
}
