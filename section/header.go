package section

import (
	"fmt"

	"github.com/edflab/edfplus/errs"
	"github.com/edflab/edfplus/internal/ascii"
	"github.com/edflab/edfplus/tal"
)

// MainHeader is the decoded 256-byte file prefix. Patient and Recording hold
// the raw 80-byte local fields with padding stripped; splitting them into
// EDF+ subfields is the caller's concern.
type MainHeader struct {
	Patient   string
	Recording string

	// Start stamp, wall-clock fields as stored.
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int

	HeaderBytes         int
	RecordCount         int64
	RecordDurationTicks int64
	SignalCount         int
}

// EncodeMain renders the main header into its fixed 256-byte form.
//
// HeaderBytes and SignalCount must already account for annotation channels;
// the encoder writes what it is given and performs no validation, mirroring
// the decoder which validates everything.
func (h *MainHeader) EncodeMain() []byte {
	buf := make([]byte, MainHeaderBytes)
	put := func(off, width int, text string) {
		copy(buf[off:off+width], ascii.PadField(text, width))
	}

	put(offVersion, widthVersion, "0")
	put(offPatient, widthPatient, h.Patient)
	put(offRecording, widthRecording, h.Recording)
	put(offStartDate, widthStartDate,
		fmt.Sprintf("%02d.%02d.%02d", h.Day, h.Month, h.Year%100))
	put(offStartTime, widthStartTime,
		fmt.Sprintf("%02d.%02d.%02d", h.Hour, h.Minute, h.Second))
	put(offHeaderBytes, widthHeaderBytes, fmt.Sprintf("%d", h.HeaderBytes))
	put(offReserved, widthReserved, continuousIdentifier)
	put(offRecordCount, widthRecordCount, fmt.Sprintf("%d", h.RecordCount))
	put(offDuration, widthDuration, tal.FormatTicks(h.RecordDurationTicks))
	put(offSignalCount, widthSignalCount, fmt.Sprintf("%d", h.SignalCount))

	return buf
}

// ParseMain decodes and validates the 256-byte file prefix.
//
// Returns:
//   - *MainHeader: Decoded header on success
//   - error: ErrInvalidHeader for a short buffer or a header-size mismatch,
//     ErrUnsupportedFileType when the version or reserved identifier is not
//     continuous EDF+, ErrInvalidSignalCount outside [1, MaxSignals],
//     ErrInvalidFormat for an unparseable record duration
func ParseMain(buf []byte) (*MainHeader, error) {
	if len(buf) < MainHeaderBytes {
		return nil, fmt.Errorf("%w: file shorter than %d bytes", errs.ErrInvalidHeader, MainHeaderBytes)
	}

	field := func(off, width int) string {
		return ascii.Trim(string(buf[off : off+width]))
	}

	if v := field(offVersion, widthVersion); v != "0" {
		return nil, fmt.Errorf("%w: version field %q", errs.ErrUnsupportedFileType, v)
	}
	reserved := string(buf[offReserved : offReserved+widthReserved])
	if len(reserved) < len(continuousIdentifier) ||
		reserved[:len(continuousIdentifier)] != continuousIdentifier {
		return nil, fmt.Errorf("%w: reserved field does not declare %s",
			errs.ErrUnsupportedFileType, continuousIdentifier)
	}

	signalCount := ascii.Atoi(field(offSignalCount, widthSignalCount))
	if signalCount < 1 || signalCount > MaxSignals {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidSignalCount, signalCount)
	}

	headerBytes := ascii.Atoi(field(offHeaderBytes, widthHeaderBytes))
	if headerBytes != (signalCount+1)*SignalHeaderBytes {
		return nil, fmt.Errorf("%w: header byte count %d does not match %d signals",
			errs.ErrInvalidHeader, headerBytes, signalCount)
	}

	durationText := field(offDuration, widthDuration)
	durationTicks, err := tal.ParseTicks(durationText)
	if err != nil {
		return nil, fmt.Errorf("%w: record duration %q", errs.ErrInvalidFormat, durationText)
	}
	if durationTicks <= 0 {
		return nil, fmt.Errorf("%w: non-positive record duration %q", errs.ErrInvalidFormat, durationText)
	}

	h := &MainHeader{
		Patient:             field(offPatient, widthPatient),
		Recording:           field(offRecording, widthRecording),
		HeaderBytes:         headerBytes,
		RecordCount:         int64(ascii.Atoi(field(offRecordCount, widthRecordCount))),
		RecordDurationTicks: durationTicks,
		SignalCount:         signalCount,
	}

	date := string(buf[offStartDate : offStartDate+widthStartDate])
	h.Day = ascii.Atoi(date[0:2])
	h.Month = ascii.Atoi(date[3:5])
	h.Year = pivotYear(ascii.Atoi(date[6:8]))

	clock := string(buf[offStartTime : offStartTime+widthStartTime])
	h.Hour = ascii.Atoi(clock[0:2])
	h.Minute = ascii.Atoi(clock[3:5])
	h.Second = ascii.Atoi(clock[6:8])

	return h, nil
}

// RecordCountOffset is the absolute file offset of the record count field,
// the one header field finalize overwrites after the data records.
const RecordCountOffset = offRecordCount

// RecordDurationWidth is the size of the record duration field. A duration
// whose decimal text is longer cannot be stored without corruption, so
// writers must reject it up front.
const RecordDurationWidth = widthDuration

// EncodeRecordCount renders a record count as its 8-byte header field.
func EncodeRecordCount(n int64) []byte {
	return ascii.PadField(fmt.Sprintf("%d", n), widthRecordCount)
}

// pivotYear expands a two-digit header year. EDF predates 2000, so values
// above 84 read as 19yy and the rest as 20yy.
func pivotYear(yy int) int {
	if yy > 84 {
		return 1900 + yy
	}

	return 2000 + yy
}

// EncodeSignals renders the parameter block for the given descriptors in
// column-major order, SignalHeaderBytes per descriptor.
func EncodeSignals(descs []Descriptor) []byte {
	buf := make([]byte, 0, len(descs)*SignalHeaderBytes)
	for _, f := range signalSchema {
		for i := range descs {
			buf = append(buf, ascii.PadField(f.get(&descs[i]), f.width)...)
		}
	}

	return buf
}

// ParseSignals decodes the column-major parameter block for count signals
// and validates every descriptor's scaling ranges.
//
// Returns:
//   - []Descriptor: One decoded descriptor per signal, in on-disk order
//   - error: ErrInvalidHeader when the buffer is short,
//     ErrPhysicalMinEqualsMax or ErrDigitalMinEqualsMax when a descriptor's
//     range collapses to zero
func ParseSignals(buf []byte, count int) ([]Descriptor, error) {
	if len(buf) < count*SignalHeaderBytes {
		return nil, fmt.Errorf("%w: signal block truncated", errs.ErrInvalidHeader)
	}

	descs := make([]Descriptor, count)
	pos := 0
	for _, f := range signalSchema {
		for i := range descs {
			f.set(&descs[i], ascii.Trim(string(buf[pos:pos+f.width])))
			pos += f.width
		}
	}

	for i := range descs {
		d := &descs[i]
		if d.PhysicalMin == d.PhysicalMax {
			return nil, fmt.Errorf("%w: signal %d (%s)", errs.ErrPhysicalMinEqualsMax, i, d.Label)
		}
		if d.DigitalMin == d.DigitalMax {
			return nil, fmt.Errorf("%w: signal %d (%s)", errs.ErrDigitalMinEqualsMax, i, d.Label)
		}
	}

	return descs, nil
}
