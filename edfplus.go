// Package edfplus reads and writes EDF+ (European Data Format Plus) files,
// the fixed-layout binary format used for biosignal recordings such as EEG
// and PSG studies.
//
// The format is a 256-byte ASCII main header, a column-major signal
// parameter block of 256 bytes per signal, then a sequence of fixed-size
// data records. Each record concatenates every signal's 16-bit little-endian
// samples followed by the annotation channels, which carry Time-stamped
// Annotations Lists (TALs) instead of samples.
//
// # Writing
//
//	w, err := edfplus.Create("recording.edf")
//	w.AddSignal(edfplus.SignalParam{
//		Label:       "EEG Fpz-Cz",
//		PhysicalMin: -100, PhysicalMax: 100,
//		DigitalMin: -32768, DigitalMax: 32767,
//		SamplesPerRecord:  256,
//		PhysicalDimension: "uV",
//	})
//	w.AddAnnotation(2.5, "Sleep stage W")
//	w.WriteSamples([][]float64{samples})
//	w.Finalize()
//
// The header is flushed lazily on the first WriteSamples call; signals and
// metadata are locked from that point on. Finalize backpatches the true
// record count into the already-written header.
//
// # Reading
//
//	r, err := edfplus.Open("recording.edf")
//	hdr := r.Header()
//	anns := r.Annotations()
//	phys, err := r.ReadPhysicalSamples(0, 256)
//
// OpenMmap is a drop-in alternative backed by a memory mapping, useful for
// large files read sparsely.
//
// A Writer or Reader owns its file handle exclusively and is not safe for
// concurrent use. Any number of Readers may open the same finalized file
// independently.
package edfplus

import (
	"io"

	"github.com/edflab/edfplus/internal/hash"
	"github.com/edflab/edfplus/section"
	"github.com/edflab/edfplus/tal"
)

const (
	// TimeDimension is the number of ticks per second; one tick is 100ns.
	// All onset, duration and subsecond values in this package are ticks.
	TimeDimension = tal.TimeDimension

	// MaxSignals is the most signals a file may declare, annotation
	// channels included.
	MaxSignals = section.MaxSignals

	// MaxAnnotationChannels bounds SetNumberOfAnnotationSignals.
	MaxAnnotationChannels = 64

	// MaxAnnotationLen is the longest description AddAnnotation accepts.
	// On disk the effective limit is far lower (40 bytes); anything beyond
	// MaxAnnotationLen is rejected outright rather than truncated.
	MaxAnnotationLen = 512
)

// Fingerprint returns the xxHash64 digest of everything remaining in r,
// typically an entire finalized file. Two finalized files with equal
// fingerprints are byte-identical; re-reading an unmodified file always
// reproduces the same value.
func Fingerprint(r io.Reader) (uint64, error) {
	return hash.Stream(r)
}
