package edfplus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/edflab/edfplus/errs"
	"github.com/edflab/edfplus/internal/options"
	"github.com/edflab/edfplus/section"
	"github.com/edflab/edfplus/tal"
)

// writeState tracks the writer's lifecycle.
type writeState uint8

const (
	// stateConfiguring accepts signals and metadata; nothing is on disk yet.
	stateConfiguring writeState = iota
	// stateHeaderLocked means the header has been flushed with a
	// placeholder record count; configuration is frozen.
	stateHeaderLocked
	// stateWriting means at least one data record is on disk.
	stateWriting
	// stateFinalized means the record count is backpatched and the file
	// closed; every further call fails.
	stateFinalized
)

// defaultStart is the start stamp used when the caller never sets one,
// matching long-standing EDF tooling convention for anonymized files.
var defaultStart = time.Date(1985, time.January, 1, 0, 0, 0, 0, time.UTC)

// Writer streams an EDF+ file to disk: configure signals and metadata, feed
// whole data records through WriteSamples, then Finalize.
//
// The header is written lazily on the first WriteSamples call with a
// placeholder record count; Finalize backpatches the true count. Because
// records are emitted strictly forward, an annotation is only retained if
// added before the WriteSamples call covering its onset; later additions are
// dropped silently (see DroppedAnnotations).
//
// Note: The Writer is NOT thread-safe and owns its output file exclusively.
type Writer struct {
	file  *os.File
	buf   *bufio.Writer
	state writeState

	signals            []SignalParam
	annotationChannels int
	durationTicks      int64
	subsecond          int64
	start              time.Time

	patientCode string
	sex         string
	birthdate   string
	patientName string

	adminCode  string
	technician string
	equipment  string

	queued  []Annotation // added before header lock
	encoder *tal.Encoder
	added   int

	records int64
	scratch []byte
}

// WriterOption configures a Writer at Create time.
type WriterOption = options.Option[*Writer]

// WithPatientInfo sets the patient identification subfields.
func WithPatientInfo(code, sex, birthdate, name string) WriterOption {
	return options.New(func(w *Writer) error {
		return w.SetPatientInfo(code, sex, birthdate, name)
	})
}

// WithRecordingInfo sets the recording identification subfields.
func WithRecordingInfo(adminCode, technician, equipment string) WriterOption {
	return options.New(func(w *Writer) error {
		return w.SetRecordingInfo(adminCode, technician, equipment)
	})
}

// WithStartTime sets the recording start stamp.
func WithStartTime(t time.Time) WriterOption {
	return options.New(func(w *Writer) error {
		return w.SetStartDateTime(t)
	})
}

// WithDataRecordDuration sets the record duration in seconds, range (0, 3600].
func WithDataRecordDuration(seconds float64) WriterOption {
	return options.New(func(w *Writer) error {
		return w.SetDataRecordDuration(seconds)
	})
}

// WithAnnotationSignals sets the annotation channel count, range [1, 64].
func WithAnnotationSignals(n int) WriterOption {
	return options.New(func(w *Writer) error {
		return w.SetNumberOfAnnotationSignals(n)
	})
}

// Create opens path for writing and returns a Writer in its configuring
// state. The file's header is not written until the first WriteSamples call.
//
// Parameters:
//   - path: Output file path, truncated if it exists
//   - opts: Optional configuration, equivalent to calling the setters
//
// Returns:
//   - *Writer: Writer ready for configuration
//   - error: I/O failure opening the path, or an option that failed
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	w := &Writer{
		file:               f,
		buf:                bufio.NewWriter(f),
		annotationChannels: 1,
		durationTicks:      TimeDimension,
		start:              defaultStart,
	}

	if err := options.Apply(w, opts...); err != nil {
		f.Close()
		os.Remove(path)

		return nil, err
	}

	return w, nil
}

// SetPatientInfo sets the four patient identification subfields. Empty
// subfields are stored as "X"; spaces become underscores and bytes outside
// printable ASCII become '?'. Fails after the header is locked.
func (w *Writer) SetPatientInfo(code, sex, birthdate, name string) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}

	w.patientCode = code
	w.sex = sex
	w.birthdate = birthdate
	w.patientName = name

	return nil
}

// SetRecordingInfo sets the recording identification subfields, sanitized
// the same way as patient info. Fails after the header is locked.
func (w *Writer) SetRecordingInfo(adminCode, technician, equipment string) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}

	w.adminCode = adminCode
	w.technician = technician
	w.equipment = equipment

	return nil
}

// SetStartDateTime sets the recording start stamp, stored at one-second
// resolution. Fails after the header is locked.
func (w *Writer) SetStartDateTime(t time.Time) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}

	w.start = t

	return nil
}

// SetSubsecondStart sets the sub-second part of the start stamp in ticks,
// range [0, TimeDimension). It is encoded into the first record's timestamp
// marker and recovered by readers as Header.StartTimeSubsecond.
func (w *Writer) SetSubsecondStart(ticks int64) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}
	if ticks < 0 || ticks >= TimeDimension {
		return fmt.Errorf("%w: subsecond start %d out of range [0, %d)",
			errs.ErrInvalidFormat, ticks, TimeDimension)
	}

	w.subsecond = ticks

	return nil
}

// SetDataRecordDuration sets one data record's duration in seconds, valid
// range (0, 3600]. Fails after the header is locked.
func (w *Writer) SetDataRecordDuration(seconds float64) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}
	if seconds <= 0 || seconds > 3600 {
		return fmt.Errorf("%w: record duration %v outside (0, 3600] seconds",
			errs.ErrInvalidFormat, seconds)
	}

	ticks := tal.SecondsToTicks(seconds)
	if text := tal.FormatTicks(ticks); len(text) > section.RecordDurationWidth {
		return fmt.Errorf("%w: record duration %q does not fit the %d-byte header field",
			errs.ErrInvalidFormat, text, section.RecordDurationWidth)
	}

	w.durationTicks = ticks

	return nil
}

// SetNumberOfAnnotationSignals sets how many annotation channels each record
// carries, range [1, 64]. More channels mean more space for simultaneous
// annotations at 120 bytes per channel per record.
func (w *Writer) SetNumberOfAnnotationSignals(n int) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}
	if n < 1 || n > MaxAnnotationChannels {
		return fmt.Errorf("%w: annotation signal count %d outside [1, %d]",
			errs.ErrInvalidFormat, n, MaxAnnotationChannels)
	}

	w.annotationChannels = n

	return nil
}

// AddSignal appends one physiological signal definition. Fails after the
// header is locked.
//
// Returns:
//   - error: ErrPhysicalMinEqualsMax or ErrDigitalMinEqualsMax on a
//     collapsed range, ErrInvalidFormat on a bad sample count or digital
//     bounds outside int16, ErrInvalidSignalCount past MaxSignals
func (w *Writer) AddSignal(p SignalParam) error {
	if err := w.requireConfiguring(); err != nil {
		return err
	}
	if p.PhysicalMin == p.PhysicalMax {
		return fmt.Errorf("%w: signal %q", errs.ErrPhysicalMinEqualsMax, p.Label)
	}
	if p.DigitalMin == p.DigitalMax {
		return fmt.Errorf("%w: signal %q", errs.ErrDigitalMinEqualsMax, p.Label)
	}
	if p.DigitalMin < -32768 || p.DigitalMax > 32767 || p.DigitalMin >= p.DigitalMax {
		return fmt.Errorf("%w: signal %q digital range [%d, %d]",
			errs.ErrInvalidFormat, p.Label, p.DigitalMin, p.DigitalMax)
	}
	if p.SamplesPerRecord <= 0 {
		return fmt.Errorf("%w: signal %q samples per record %d",
			errs.ErrInvalidFormat, p.Label, p.SamplesPerRecord)
	}
	if len(w.signals)+1+w.annotationChannels > MaxSignals {
		return fmt.Errorf("%w: more than %d signals", errs.ErrInvalidSignalCount, MaxSignals)
	}

	w.signals = append(w.signals, p)

	return nil
}

// AddAnnotation queues an instantaneous annotation at onsetSeconds. It must
// be added before the WriteSamples call whose record covers its onset, or it
// will be dropped silently when that part of the timeline has already been
// written.
//
// Returns:
//   - error: ErrInvalidFormat on a negative onset, an empty description, or
//     a description longer than MaxAnnotationLen
func (w *Writer) AddAnnotation(onsetSeconds float64, description string) error {
	return w.addAnnotation(onsetSeconds, -1, false, description)
}

// AddDurationAnnotation queues an annotation carrying an explicit duration.
// Same placement and validation rules as AddAnnotation; the duration must be
// non-negative.
func (w *Writer) AddDurationAnnotation(onsetSeconds, durationSeconds float64, description string) error {
	return w.addAnnotation(onsetSeconds, durationSeconds, true, description)
}

func (w *Writer) addAnnotation(onsetSeconds, durationSeconds float64, hasDuration bool, description string) error {
	if w.state == stateFinalized {
		return fmt.Errorf("%w: writer finalized", errs.ErrFormat)
	}
	if onsetSeconds < 0 {
		return fmt.Errorf("%w: negative annotation onset %v", errs.ErrInvalidFormat, onsetSeconds)
	}
	if hasDuration && durationSeconds < 0 {
		return fmt.Errorf("%w: negative annotation duration %v", errs.ErrInvalidFormat, durationSeconds)
	}
	if description == "" {
		return fmt.Errorf("%w: empty annotation description", errs.ErrInvalidFormat)
	}
	if len(description) > MaxAnnotationLen {
		return fmt.Errorf("%w: annotation description %d bytes exceeds %d",
			errs.ErrInvalidFormat, len(description), MaxAnnotationLen)
	}

	ann := Annotation{
		Onset:       tal.SecondsToTicks(onsetSeconds),
		Duration:    -1,
		Description: description,
	}
	if hasDuration {
		ann.Duration = tal.SecondsToTicks(durationSeconds)
	}

	if w.encoder != nil {
		w.encoder.Add(ann)
	} else {
		w.queued = append(w.queued, ann)
	}
	w.added++

	return nil
}

// AnnotationCount returns how many annotations have been accepted so far,
// whether or not they have been encoded yet.
func (w *Writer) AnnotationCount() int {
	return w.added
}

// DroppedAnnotations returns how many accepted annotations have been lost to
// the format's lossy placement rules: slot space exhaustion, onsets behind
// the write cursor, and onsets beyond the final record at Finalize.
func (w *Writer) DroppedAnnotations() int {
	if w.encoder == nil {
		return 0
	}

	return w.encoder.Dropped()
}

// WriteSamples writes one complete data record. samples must hold exactly
// one slice per signal, in AddSignal order, and each slice exactly that
// signal's SamplesPerRecord values in physical units. Any mismatch rejects
// the whole call with no partial write.
//
// The first call locks the configuration and flushes the header with a
// placeholder record count.
func (w *Writer) WriteSamples(samples [][]float64) error {
	switch w.state {
	case stateFinalized:
		return fmt.Errorf("%w: writer finalized", errs.ErrFormat)
	case stateConfiguring:
		if err := w.lockHeader(); err != nil {
			return err
		}
	}

	if len(samples) != len(w.signals) {
		return fmt.Errorf("%w: got %d sample slices for %d signals",
			errs.ErrInvalidFormat, len(samples), len(w.signals))
	}
	for i := range samples {
		if len(samples[i]) != w.signals[i].SamplesPerRecord {
			return fmt.Errorf("%w: signal %d got %d samples, expects %d per record",
				errs.ErrInvalidFormat, i, len(samples[i]), w.signals[i].SamplesPerRecord)
		}
	}

	for i := range samples {
		sig := &w.signals[i]
		need := len(samples[i]) * 2
		if cap(w.scratch) < need {
			w.scratch = make([]byte, need)
		}
		buf := w.scratch[:need]
		for j, phys := range samples[i] {
			binary.LittleEndian.PutUint16(buf[j*2:], uint16(int16(sig.ToDigital(phys))))
		}
		if _, err := w.buf.Write(buf); err != nil {
			return fmt.Errorf("writing record %d: %w", w.records, err)
		}
	}

	for _, block := range w.encoder.EncodeRecord(w.records) {
		if _, err := w.buf.Write(block); err != nil {
			return fmt.Errorf("writing record %d annotations: %w", w.records, err)
		}
	}

	w.records++
	w.state = stateWriting

	return nil
}

// Finalize flushes buffered data, backpatches the true record count into the
// header, and closes the file. Annotations still pending with onsets beyond
// the written timeline are dropped. The writer is unusable afterwards.
func (w *Writer) Finalize() error {
	if w.state == stateFinalized {
		return fmt.Errorf("%w: writer finalized", errs.ErrFormat)
	}
	if w.state == stateConfiguring {
		if err := w.lockHeader(); err != nil {
			return err
		}
	}

	w.encoder.DiscardPending()

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flushing: %w", err)
	}

	// The placeholder count written at header lock is 1; any other final
	// count needs the single backward patch.
	if w.records != 1 {
		field := section.EncodeRecordCount(w.records)
		if _, err := w.file.WriteAt(field, section.RecordCountOffset); err != nil {
			w.file.Close()
			return fmt.Errorf("backpatching record count: %w", err)
		}
	}

	w.state = stateFinalized

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	return nil
}

// lockHeader freezes configuration and flushes the header with a placeholder
// record count of 1.
func (w *Writer) lockHeader() error {
	if len(w.signals) == 0 {
		return fmt.Errorf("%w: no signals defined", errs.ErrInvalidSignalCount)
	}

	descs := make([]section.Descriptor, 0, len(w.signals)+w.annotationChannels)
	for i := range w.signals {
		descs = append(descs, w.signals[i].descriptor())
	}
	for c := 0; c < w.annotationChannels; c++ {
		descs = append(descs, annotationDescriptor())
	}

	main := section.MainHeader{
		Patient:             w.patientField(),
		Recording:           w.recordingField(),
		Year:                w.start.Year(),
		Month:               int(w.start.Month()),
		Day:                 w.start.Day(),
		Hour:                w.start.Hour(),
		Minute:              w.start.Minute(),
		Second:              w.start.Second(),
		HeaderBytes:         (len(descs) + 1) * section.SignalHeaderBytes,
		RecordCount:         1,
		RecordDurationTicks: w.durationTicks,
		SignalCount:         len(descs),
	}

	if _, err := w.buf.Write(main.EncodeMain()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.buf.Write(section.EncodeSignals(descs)); err != nil {
		return fmt.Errorf("writing signal block: %w", err)
	}

	w.encoder = tal.NewEncoder(w.annotationChannels, w.durationTicks, w.subsecond)
	for _, ann := range w.queued {
		w.encoder.Add(ann)
	}
	w.queued = nil
	w.state = stateHeaderLocked

	return nil
}

func (w *Writer) requireConfiguring() error {
	if w.state != stateConfiguring {
		return fmt.Errorf("%w: header locked", errs.ErrFormat)
	}

	return nil
}

// patientField composes the EDF+ local patient field:
// "code sex birthdate name".
func (w *Writer) patientField() string {
	return strings.Join([]string{
		sanitizeSubfield(w.patientCode),
		sanitizeSubfield(w.sex),
		sanitizeSubfield(w.birthdate),
		sanitizeSubfield(w.patientName),
	}, " ")
}

// recordingField composes the EDF+ local recording field:
// "Startdate dd-MMM-yyyy admin technician equipment".
func (w *Writer) recordingField() string {
	date := fmt.Sprintf("%02d-%s-%04d",
		w.start.Day(),
		strings.ToUpper(w.start.Format("Jan")),
		w.start.Year())

	return strings.Join([]string{
		"Startdate",
		date,
		sanitizeSubfield(w.adminCode),
		sanitizeSubfield(w.technician),
		sanitizeSubfield(w.equipment),
	}, " ")
}

// sanitizeSubfield makes a value safe for the space-separated EDF+ local
// fields: empty values become "X", internal spaces become underscores, and
// bytes outside printable ASCII become '?'.
func sanitizeSubfield(s string) string {
	if s == "" {
		return "X"
	}

	out := []byte(s)
	for i, c := range out {
		switch {
		case c == ' ':
			out[i] = '_'
		case c < 32 || c > 126:
			out[i] = '?'
		}
	}

	return string(out)
}

// annotationDescriptor is the fixed descriptor every annotation channel
// carries.
func annotationDescriptor() section.Descriptor {
	return section.Descriptor{
		Label:            strings.TrimRight(section.AnnotationLabel, " "),
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: tal.SamplesPerRecord,
	}
}
