// Package tal implements the Time-stamped Annotations List sub-format
// embedded in the annotation channels of EDF+ data records.
//
// Each (data record, annotation channel) pair carries one fixed-size block
// of AnnotationBytes bytes. A block holds zero or more TALs. Each TAL is a
// sequence of annotation units:
//
//	+<onset>[\x15<duration>]\x14<description>\x14 ... \x00
//
// where onset and duration are decimal seconds with up to seven fractional
// digits. The first unit of channel 0 of every record is a timestamp
// pseudo-annotation with an empty description that stamps the record's start
// time; it is consumed by the parser, never surfaced as a user annotation.
//
// The Encoder distributes queued annotations across records and channels at
// write time; the Parser is a byte-level state machine with local error
// recovery, so one corrupt block never invalidates the rest of the file.
package tal

const (
	// TimeDimension is the number of 100ns ticks per second.
	TimeDimension int64 = 10_000_000

	// AnnotationBytes is the fixed on-disk size of one annotation-channel
	// block per data record: 60 two-byte samples.
	AnnotationBytes = 120

	// SamplesPerRecord is AnnotationBytes expressed in 16-bit samples, the
	// value carried in the annotation channel's signal descriptor.
	SamplesPerRecord = AnnotationBytes / 2

	// MaxDescriptionBytes is the effective cap on a description once
	// encoded; longer descriptions are truncated at encode time.
	MaxDescriptionBytes = 40
)

// Annotation is a single time-stamped event.
type Annotation struct {
	// Onset is the event start in 100ns ticks relative to recording start.
	Onset int64
	// Duration is the event length in 100ns ticks, or -1 when unknown or
	// instantaneous.
	Duration int64
	// Description is the UTF-8 event text.
	Description string
}
