package edfplus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edflab/edfplus/errs"
	"github.com/edflab/edfplus/section"
)

// writeExampleFile produces a five-second, one-signal file with one
// annotation inside the written timeline and one beyond it.
func writeExampleFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "example.edf")
	w, err := Create(path)
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	require.NoError(t, w.AddAnnotation(2.5, "Valid event"))
	require.NoError(t, w.AddAnnotation(5.0, "Will be discarded"))

	for rec := 0; rec < 5; rec++ {
		samples := make([]float64, sig.SamplesPerRecord)
		for i := range samples {
			samples[i] = sig.ToPhysical(exampleDigital(rec, i))
		}
		require.NoError(t, w.WriteSamples([][]float64{samples}))
	}
	require.NoError(t, w.Finalize())
	require.Equal(t, 1, w.DroppedAnnotations())

	return path
}

func exampleDigital(rec, i int) int {
	return (rec*256+i)%200 - 100
}

func TestRoundTrip(t *testing.T) {
	path := writeExampleFile(t)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	t.Run("header", func(t *testing.T) {
		hdr := r.Header()
		require.Equal(t, int64(5), hdr.DataRecords)
		require.Equal(t, TimeDimension, hdr.RecordDuration)
		require.Equal(t, 5*TimeDimension, hdr.FileDuration)
		require.Zero(t, hdr.StartTimeSubsecond)
		require.Equal(t, defaultStart, hdr.StartTime)
		require.Equal(t, 1, hdr.AnnotationsInFile)
		require.Equal(t, "X", hdr.PatientCode)
		require.Equal(t, "X", hdr.Equipment)

		require.Len(t, hdr.Signals, 1)
		sig := hdr.Signals[0]
		require.Equal(t, "EEG Fpz-Cz", sig.Label)
		require.Equal(t, "uV", sig.PhysicalDimension)
		require.Equal(t, 256, sig.SamplesPerRecord)
		require.Equal(t, int64(1280), sig.SamplesInFile)
	})

	t.Run("annotations", func(t *testing.T) {
		anns := r.Annotations()
		require.Len(t, anns, 1)
		require.Equal(t, int64(25_000_000), anns[0].Onset)
		require.Equal(t, int64(-1), anns[0].Duration)
		require.Equal(t, "Valid event", anns[0].Description)
	})

	t.Run("digital samples", func(t *testing.T) {
		require.NoError(t, r.Rewind(0))
		got, err := r.ReadDigitalSamples(0, 512)
		require.NoError(t, err)
		require.Len(t, got, 512)
		for i, d := range got {
			require.InDelta(t, exampleDigital(i/256, i%256), d, 1, "sample %d", i)
		}

		pos, err := r.Tell(0)
		require.NoError(t, err)
		require.Equal(t, int64(512), pos)
	})

	t.Run("physical samples", func(t *testing.T) {
		require.NoError(t, r.Rewind(0))
		got, err := r.ReadPhysicalSamples(0, 256)
		require.NoError(t, err)

		sig := r.Header().Signals[0]
		for i, p := range got {
			require.InDelta(t, sig.ToPhysical(exampleDigital(0, i)), p, 0.01, "sample %d", i)
		}
	})

	t.Run("cursor clamping and short reads", func(t *testing.T) {
		pos, err := r.Seek(0, 9999)
		require.NoError(t, err)
		require.Equal(t, int64(1280), pos)

		pos, err = r.Seek(0, -5)
		require.NoError(t, err)
		require.Zero(t, pos)

		_, err = r.Seek(0, 1200)
		require.NoError(t, err)
		got, err := r.ReadDigitalSamples(0, 500)
		require.NoError(t, err)
		require.Len(t, got, 80)
	})

	t.Run("invalid signal index", func(t *testing.T) {
		_, err := r.ReadDigitalSamples(3, 1)
		require.True(t, errors.Is(err, errs.ErrInvalidSignalIndex))
		_, err = r.Tell(-1)
		require.True(t, errors.Is(err, errs.ErrInvalidSignalIndex))
	})
}

func TestAnnotationsSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorted.edf")
	w, err := Create(path, WithAnnotationSignals(2))
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	require.NoError(t, w.AddAnnotation(3.5, "third"))
	require.NoError(t, w.AddAnnotation(1.5, "first"))
	require.NoError(t, w.AddAnnotation(2.2, "second"))

	for rec := 0; rec < 5; rec++ {
		require.NoError(t, w.WriteSamples(oneRecord(sig.SamplesPerRecord)))
	}
	require.NoError(t, w.Finalize())
	require.Zero(t, w.DroppedAnnotations())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	anns := r.Annotations()
	require.Len(t, anns, 3)
	require.Equal(t, "first", anns[0].Description)
	require.Equal(t, "second", anns[1].Description)
	require.Equal(t, "third", anns[2].Description)
	for i := 1; i < len(anns); i++ {
		require.LessOrEqual(t, anns[i-1].Onset, anns[i].Onset)
	}
}

func TestOpenIdempotence(t *testing.T) {
	path := writeExampleFile(t)

	r1, err := Open(path)
	require.NoError(t, err)
	defer r1.Close()
	r2, err := Open(path)
	require.NoError(t, err)
	defer r2.Close()

	require.Equal(t, r1.Header(), r2.Header())
	require.Equal(t, r1.Annotations(), r2.Annotations())
}

func TestFingerprint(t *testing.T) {
	path := writeExampleFile(t)

	digest := func() uint64 {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()

		sum, err := Fingerprint(f)
		require.NoError(t, err)

		return sum
	}

	first := digest()
	require.Equal(t, first, digest())

	// One flipped sample byte changes the digest.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	buf := []byte{0}
	_, err = f.ReadAt(buf, 800)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, err = f.WriteAt(buf, 800)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NotEqual(t, first, digest())
}

func TestMmapMatchesFile(t *testing.T) {
	path := writeExampleFile(t)

	rf, err := Open(path)
	require.NoError(t, err)
	defer rf.Close()

	rm, err := OpenMmap(path)
	require.NoError(t, err)
	defer rm.Close()

	require.Equal(t, rf.Header(), rm.Header())
	require.Equal(t, rf.Annotations(), rm.Annotations())

	sf, err := rf.ReadPhysicalSamples(0, 256)
	require.NoError(t, err)
	sm, err := rm.ReadPhysicalSamples(0, 256)
	require.NoError(t, err)
	require.Equal(t, sf, sm)
}

func TestDiscontinuousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.edf")
	w, err := Create(path)
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	for rec := 0; rec < 3; rec++ {
		require.NoError(t, w.WriteSamples(oneRecord(sig.SamplesPerRecord)))
	}
	require.NoError(t, w.Finalize())

	// Header is 768 bytes, each record 512 sample bytes plus a 120-byte
	// annotation block. Record 1's timestamp marker "+1" starts at 1912;
	// rewriting its digit fakes an eight second gap.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	marker := make([]byte, 5)
	_, err = f.ReadAt(marker, 1912)
	require.NoError(t, err)
	require.Equal(t, []byte("+1\x14\x14\x00"), marker)
	_, err = f.WriteAt([]byte("9"), 1913)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path)
	require.True(t, errors.Is(err, errs.ErrDiscontinuousFile), "got %v", err)
}

func TestSubsecondRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subsec.edf")
	w, err := Create(path)
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	require.NoError(t, w.SetSubsecondStart(2_500_000))
	for rec := 0; rec < 2; rec++ {
		require.NoError(t, w.WriteSamples(oneRecord(sig.SamplesPerRecord)))
	}
	require.NoError(t, w.Finalize())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, int64(2_500_000), r.Header().StartTimeSubsecond)
}

func TestHeaderMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.edf")
	start := time.Date(2024, time.June, 1, 23, 30, 15, 0, time.UTC)
	w, err := Create(path,
		WithPatientInfo("P001", "M", "02-MAY-1951", "Haagse Harry"),
		WithRecordingInfo("STUDY42", "RN_Jones", "PSG4000"),
		WithStartTime(start),
	)
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	require.NoError(t, w.WriteSamples(oneRecord(sig.SamplesPerRecord)))
	require.NoError(t, w.Finalize())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	hdr := r.Header()
	require.Equal(t, start, hdr.StartTime)
	require.Equal(t, "P001", hdr.PatientCode)
	require.Equal(t, "M", hdr.Sex)
	require.Equal(t, "02-MAY-1951", hdr.Birthdate)
	require.Equal(t, "Haagse_Harry", hdr.PatientName)
	require.Equal(t, "STUDY42", hdr.AdminCode)
	require.Equal(t, "RN_Jones", hdr.Technician)
	require.Equal(t, "PSG4000", hdr.Equipment)
	require.Equal(t, int64(1), hdr.DataRecords)
}

// writeSyntheticAnnotationFile hand-assembles a one-record file whose single
// channel is an annotation channel with the given samples per record, filled
// with talBytes and zero padding.
func writeSyntheticAnnotationFile(t *testing.T, spr int, talBytes []byte) string {
	t.Helper()

	main := section.MainHeader{
		Patient:             "X X X X",
		Recording:           "Startdate 01-JAN-1985 X X X",
		Year:                1985,
		Month:               1,
		Day:                 1,
		HeaderBytes:         2 * section.SignalHeaderBytes,
		RecordCount:         1,
		RecordDurationTicks: TimeDimension,
		SignalCount:         1,
	}
	desc := section.Descriptor{
		Label:            "EDF Annotations",
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       -32768,
		DigitalMax:       32767,
		SamplesPerRecord: spr,
	}

	block := make([]byte, spr*2)
	require.LessOrEqual(t, len(talBytes), len(block))
	copy(block, talBytes)

	buf := main.EncodeMain()
	buf = append(buf, section.EncodeSignals([]section.Descriptor{desc})...)
	buf = append(buf, block...)

	path := filepath.Join(t.TempDir(), "synthetic.edf")
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	return path
}

func TestAnnotationChannelWidths(t *testing.T) {
	t.Run("wider than default", func(t *testing.T) {
		// A 100-sample channel is 200 bytes; the description pushes the
		// annotation unit well past byte 120.
		desc := strings.Repeat("e", 130)
		talBytes := []byte("+0\x14\x14\x00+0.5\x14" + desc + "\x14")
		path := writeSyntheticAnnotationFile(t, 100, talBytes)

		r, err := Open(path)
		require.NoError(t, err)
		defer r.Close()

		anns := r.Annotations()
		require.Len(t, anns, 1)
		require.Equal(t, int64(5_000_000), anns[0].Onset)
		require.Equal(t, desc, anns[0].Description)
		require.Equal(t, 1, r.Header().AnnotationsInFile)
	})

	t.Run("narrower than default", func(t *testing.T) {
		// A 10-sample channel is only 20 bytes and ends the file; reading
		// a fixed-size block here would run past EOF.
		path := writeSyntheticAnnotationFile(t, 10, []byte("+0\x14\x14\x00"))

		r, err := Open(path)
		require.NoError(t, err)
		defer r.Close()

		require.Empty(t, r.Annotations())
		require.Equal(t, int64(1), r.Header().DataRecords)
		require.Zero(t, r.Header().StartTimeSubsecond)
	})
}

func TestFinalizeWithoutRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.edf")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.AddSignal(fullRangeSignal()))
	require.NoError(t, w.Finalize())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Zero(t, r.Header().DataRecords)
	require.Empty(t, r.Annotations())
	require.Zero(t, r.Header().Signals[0].SamplesInFile)

	got, err := r.ReadDigitalSamples(0, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadSpanningRecords(t *testing.T) {
	path := writeExampleFile(t)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	// An unaligned span crossing the record boundary at sample 256.
	_, err = r.Seek(0, 200)
	require.NoError(t, err)
	got, err := r.ReadDigitalSamples(0, 112)
	require.NoError(t, err)
	require.Len(t, got, 112)
	for i, d := range got {
		k := 200 + i
		require.InDelta(t, exampleDigital(k/256, k%256), d, 1, "sample %d", k)
	}

	pos, err := r.Tell(0)
	require.NoError(t, err)
	require.Equal(t, int64(312), pos)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.edf"))
	require.True(t, errors.Is(err, errs.ErrFileNotFound))
}

func TestTruncatedDescriptionSurvivesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.edf")
	w, err := Create(path)
	require.NoError(t, err)

	sig := fullRangeSignal()
	require.NoError(t, w.AddSignal(sig))
	long := "this description is considerably longer than forty bytes and will be cut"
	require.NoError(t, w.AddAnnotation(0.5, long))
	require.NoError(t, w.WriteSamples(oneRecord(sig.SamplesPerRecord)))
	require.NoError(t, w.Finalize())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	anns := r.Annotations()
	require.Len(t, anns, 1)
	require.Equal(t, long[:40], anns[0].Description)
}
