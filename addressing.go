package edfplus

import "github.com/edflab/edfplus/section"

// recordLayout captures the fixed byte geometry of a file's data records:
// where the records start, how long each is, and where every on-disk
// channel's samples sit inside one record. Annotation channels follow the
// user signals in on-disk order.
type recordLayout struct {
	headerBytes int64
	recordBytes int64
	slots       []channelSlot
}

// channelSlot is one on-disk channel's share of a data record.
type channelSlot struct {
	offset           int64 // byte offset inside a record
	samplesPerRecord int
}

// newRecordLayout derives the layout from the decoded descriptors, in their
// on-disk order.
func newRecordLayout(descs []section.Descriptor) recordLayout {
	l := recordLayout{
		headerBytes: int64((len(descs) + 1) * section.SignalHeaderBytes),
		slots:       make([]channelSlot, len(descs)),
	}

	var cum int64
	for i := range descs {
		l.slots[i] = channelSlot{offset: cum, samplesPerRecord: descs[i].SamplesPerRecord}
		cum += int64(descs[i].SamplesPerRecord) * 2
	}
	l.recordBytes = cum

	return l
}

// sampleOffset returns the absolute file offset of global sample index k of
// the channel in the given slot.
func (l *recordLayout) sampleOffset(slot int, k int64) int64 {
	spr := int64(l.slots[slot].samplesPerRecord)
	record := k / spr
	within := k % spr

	return l.headerBytes + record*l.recordBytes + l.slots[slot].offset + within*2
}

// recordOffset returns the absolute file offset of the start of record r.
func (l *recordLayout) recordOffset(r int64) int64 {
	return l.headerBytes + r*l.recordBytes
}
