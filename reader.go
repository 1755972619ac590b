package edfplus

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-mmap/mmap"

	"github.com/edflab/edfplus/errs"
	"github.com/edflab/edfplus/section"
	"github.com/edflab/edfplus/tal"
)

// fastCountRecords bounds the pre-scan that populates
// Header.AnnotationsInFile. Scanning every record of a large file just for a
// count is wasteful, so the count is approximate past this many records;
// Annotations() always scans everything.
const fastCountRecords = 100

// continuityToleranceTicks is how far a record's timestamp marker may drift
// from its expected start before the file is rejected as discontinuous:
// one thousandth of a second.
const continuityToleranceTicks = TimeDimension / 1000

// Reader provides random access to a finalized EDF+ file: decoded header
// metadata, the complete sorted annotation list, and per-signal sample
// cursors.
//
// A Reader is not safe for concurrent use, but any number of Readers may
// open the same file independently.
type Reader struct {
	src    io.ReaderAt
	closer io.Closer

	header  Header
	anns    []Annotation
	layout  recordLayout
	records int64

	// userSlots maps a public signal index to its on-disk slot;
	// annotationSlots lists the annotation channels' slots in order.
	userSlots       []int
	annotationSlots []int
	cursors         []int64
}

// Open opens an EDF+ file through buffered file I/O. The whole header is
// parsed and every record's annotation channels are scanned before Open
// returns, so a non-nil Reader is fully validated.
//
// Returns:
//   - *Reader: Ready reader on success
//   - error: ErrFileNotFound when the path does not exist; header sentinel
//     errors per section.ParseMain/ParseSignals; ErrDiscontinuousFile when
//     record timestamps do not advance by one record duration
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	r, err := newReader(f, info.Size(), f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

// OpenMmap opens an EDF+ file through a read-only memory mapping. Behavior
// is identical to Open; only the I/O backend differs.
func OpenMmap(path string) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	r, err := newReader(f, info.Size(), f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

// newReader runs the full open sequence over any io.ReaderAt: parse and
// validate the header sections, derive the record layout, pre-count
// annotations, then scan every record's annotation channels.
func newReader(src io.ReaderAt, size int64, closer io.Closer) (*Reader, error) {
	mainBuf := make([]byte, section.MainHeaderBytes)
	if _, err := src.ReadAt(mainBuf, 0); err != nil {
		return nil, fmt.Errorf("%w: reading main header", errs.ErrInvalidHeader)
	}
	main, err := section.ParseMain(mainBuf)
	if err != nil {
		return nil, err
	}

	sigBuf := make([]byte, main.SignalCount*section.SignalHeaderBytes)
	if _, err := src.ReadAt(sigBuf, section.MainHeaderBytes); err != nil {
		return nil, fmt.Errorf("%w: reading signal block", errs.ErrInvalidHeader)
	}
	descs, err := section.ParseSignals(sigBuf, main.SignalCount)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:    src,
		closer: closer,
		layout: newRecordLayout(descs),
	}

	for i := range descs {
		if descs[i].IsAnnotation() {
			r.annotationSlots = append(r.annotationSlots, i)
		} else {
			r.userSlots = append(r.userSlots, i)
			r.header.Signals = append(r.header.Signals, signalFromDescriptor(&descs[i]))
		}
	}
	if len(r.annotationSlots) == 0 {
		return nil, fmt.Errorf("%w: no annotation channel", errs.ErrInvalidFormat)
	}

	r.records = main.RecordCount
	if r.records <= 0 && r.layout.recordBytes > 0 {
		// Unfinalized or sloppy files store -1 or 0; the record geometry
		// is fixed, so the true count follows from the file size.
		r.records = (size - r.layout.headerBytes) / r.layout.recordBytes
	}

	for i := range r.header.Signals {
		sig := &r.header.Signals[i]
		sig.SamplesInFile = r.records * int64(sig.SamplesPerRecord)
	}
	r.cursors = make([]int64, len(r.header.Signals))

	r.header.StartTime = time.Date(main.Year, time.Month(main.Month), main.Day,
		main.Hour, main.Minute, main.Second, 0, time.UTC)
	r.header.DataRecords = r.records
	r.header.RecordDuration = main.RecordDurationTicks
	r.header.FileDuration = r.records * main.RecordDurationTicks
	splitPatientField(main.Patient, &r.header)
	splitRecordingField(main.Recording, &r.header)

	if err := r.scanAnnotations(); err != nil {
		return nil, err
	}
	r.header.AnnotationsInFile = r.fastAnnotationCount()

	return r, nil
}

// scanAnnotations reads every annotation channel of every record, validates
// timestamp continuity, and builds the sorted annotation list.
func (r *Reader) scanAnnotations() error {
	blocks := r.annotationBuffers()

	for rec := int64(0); rec < r.records; rec++ {
		for a, slot := range r.annotationSlots {
			block := blocks[a]
			if err := r.readBlock(block, rec, slot); err != nil {
				return err
			}

			anns, stamp, hasStamp := tal.ParseBlock(block, a == 0)
			r.anns = append(r.anns, anns...)

			if a != 0 || !hasStamp {
				continue
			}
			if rec == 0 {
				r.header.StartTimeSubsecond = stamp
				continue
			}
			expected := r.header.StartTimeSubsecond + rec*r.header.RecordDuration
			drift := stamp - expected
			if drift < -continuityToleranceTicks || drift > continuityToleranceTicks {
				return fmt.Errorf("%w: record %d stamped %s, expected %s",
					errs.ErrDiscontinuousFile, rec,
					tal.FormatTicks(stamp), tal.FormatTicks(expected))
			}
		}
	}

	// Round-robin channel placement interleaves onsets across channels, so
	// block order is not chronological. Stable sort keeps insertion order
	// among equal onsets.
	sort.SliceStable(r.anns, func(i, j int) bool {
		return r.anns[i].Onset < r.anns[j].Onset
	})

	return nil
}

// fastAnnotationCount counts annotations in the first fastCountRecords
// records only.
func (r *Reader) fastAnnotationCount() int {
	limit := r.records
	if limit > fastCountRecords {
		limit = fastCountRecords
	}

	blocks := r.annotationBuffers()
	count := 0
	for rec := int64(0); rec < limit; rec++ {
		for a, slot := range r.annotationSlots {
			if err := r.readBlock(blocks[a], rec, slot); err != nil {
				return count
			}
			count += tal.CountBlock(blocks[a], a == 0)
		}
	}

	return count
}

// annotationBuffers allocates one read buffer per annotation channel, sized
// to that channel's declared samples per record. Channels are not required
// to carry the usual 60 samples, and a block is only parseable as a whole:
// its final byte decides whether it holds annotations at all.
func (r *Reader) annotationBuffers() [][]byte {
	blocks := make([][]byte, len(r.annotationSlots))
	for a, slot := range r.annotationSlots {
		blocks[a] = make([]byte, r.layout.slots[slot].samplesPerRecord*2)
	}

	return blocks
}

// readBlock fills block with one annotation channel's bytes for one record.
func (r *Reader) readBlock(block []byte, rec int64, slot int) error {
	off := r.layout.recordOffset(rec) + r.layout.slots[slot].offset
	if _, err := r.src.ReadAt(block, off); err != nil {
		return fmt.Errorf("reading record %d annotations: %w", rec, err)
	}

	return nil
}

// Header returns the decoded file metadata. The returned pointer aliases
// the Reader's state; treat it as read-only.
func (r *Reader) Header() *Header {
	return &r.header
}

// Annotations returns every user annotation in the file, sorted ascending
// by onset. This list is exhaustive and authoritative, unlike the bounded
// Header.AnnotationsInFile count.
func (r *Reader) Annotations() []Annotation {
	out := make([]Annotation, len(r.anns))
	copy(out, r.anns)

	return out
}

// ReadDigitalSamples reads up to count raw digital codes for the given
// signal from its cursor, advancing the cursor. Short reads at end of file
// return fewer samples, never an error. Stored codes outside the signal's
// digital range are clamped.
//
// Returns:
//   - []int: Decoded codes, possibly fewer than count
//   - error: ErrInvalidSignalIndex, or an I/O failure
func (r *Reader) ReadDigitalSamples(signal, count int) ([]int, error) {
	if err := r.checkSignal(signal); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative sample count %d", errs.ErrInvalidFormat, count)
	}

	sig := &r.header.Signals[signal]
	slot := r.userSlots[signal]
	cursor := r.cursors[signal]

	remaining := sig.SamplesInFile - cursor
	if int64(count) > remaining {
		count = int(remaining)
	}

	// Samples of one signal are contiguous within a record, so each record
	// contributes a single ReadAt covering the span's run.
	out := make([]int, 0, count)
	var raw []byte
	pos := cursor
	for len(out) < count {
		spr := int64(sig.SamplesPerRecord)
		run := spr - pos%spr
		if left := int64(count - len(out)); run > left {
			run = left
		}

		need := int(run) * 2
		if cap(raw) < need {
			raw = make([]byte, need)
		}
		buf := raw[:need]
		if _, err := r.src.ReadAt(buf, r.layout.sampleOffset(slot, pos)); err != nil {
			return nil, fmt.Errorf("reading signal %d sample %d: %w", signal, pos, err)
		}

		for i := 0; i < int(run); i++ {
			d := int(int16(binary.LittleEndian.Uint16(buf[i*2:])))
			if d < sig.DigitalMin {
				d = sig.DigitalMin
			} else if d > sig.DigitalMax {
				d = sig.DigitalMax
			}
			out = append(out, d)
		}
		pos += run
	}
	r.cursors[signal] = pos

	return out, nil
}

// ReadPhysicalSamples reads up to count samples for the given signal,
// converted to physical units. Same cursor and short-read semantics as
// ReadDigitalSamples.
func (r *Reader) ReadPhysicalSamples(signal, count int) ([]float64, error) {
	digital, err := r.ReadDigitalSamples(signal, count)
	if err != nil {
		return nil, err
	}

	sig := &r.header.Signals[signal]
	out := make([]float64, len(digital))
	for i, d := range digital {
		out[i] = sig.ToPhysical(d)
	}

	return out, nil
}

// Seek moves the signal's cursor to position, clamped into
// [0, SamplesInFile], and returns the resulting position.
func (r *Reader) Seek(signal int, position int64) (int64, error) {
	if err := r.checkSignal(signal); err != nil {
		return 0, err
	}

	if position < 0 {
		position = 0
	}
	if max := r.header.Signals[signal].SamplesInFile; position > max {
		position = max
	}
	r.cursors[signal] = position

	return position, nil
}

// Tell returns the signal's cursor position.
func (r *Reader) Tell(signal int) (int64, error) {
	if err := r.checkSignal(signal); err != nil {
		return 0, err
	}

	return r.cursors[signal], nil
}

// Rewind resets the signal's cursor to the start of the file.
func (r *Reader) Rewind(signal int) error {
	if err := r.checkSignal(signal); err != nil {
		return err
	}
	r.cursors[signal] = 0

	return nil
}

// Close releases the underlying file handle or memory mapping. The Reader
// is unusable afterwards.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil

	return err
}

func (r *Reader) checkSignal(signal int) error {
	if signal < 0 || signal >= len(r.header.Signals) {
		return fmt.Errorf("%w: %d of %d", errs.ErrInvalidSignalIndex, signal, len(r.header.Signals))
	}

	return nil
}

// splitPatientField decomposes the 80-byte local patient field into its
// EDF+ subfields: "code sex birthdate name [additional]".
func splitPatientField(field string, h *Header) {
	parts := strings.Fields(field)
	get := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}

		return ""
	}

	h.PatientCode = get(0)
	h.Sex = get(1)
	h.Birthdate = get(2)
	h.PatientName = get(3)
	if len(parts) > 4 {
		h.PatientAdditional = strings.Join(parts[4:], " ")
	}
}

// splitRecordingField decomposes the 80-byte local recording field:
// "Startdate dd-MMM-yyyy admin technician equipment [additional]". The date
// token duplicates the binary start date field and is not re-parsed.
func splitRecordingField(field string, h *Header) {
	parts := strings.Fields(field)
	if len(parts) == 0 || parts[0] != "Startdate" {
		return
	}
	get := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}

		return ""
	}

	h.AdminCode = get(2)
	h.Technician = get(3)
	h.Equipment = get(4)
	if len(parts) > 5 {
		h.RecordingAdditional = strings.Join(parts[5:], " ")
	}
}
