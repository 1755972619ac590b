package section

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edflab/edfplus/errs"
)

func validMain() *MainHeader {
	return &MainHeader{
		Patient:             "X X X X",
		Recording:           "Startdate 01-JAN-1985 X X X",
		Year:                1985,
		Month:               1,
		Day:                 1,
		Hour:                0,
		Minute:              0,
		Second:              0,
		HeaderBytes:         3 * SignalHeaderBytes,
		RecordCount:         5,
		RecordDurationTicks: 10_000_000,
		SignalCount:         2,
	}
}

func TestMainHeaderRoundTrip(t *testing.T) {
	h := validMain()

	buf := h.EncodeMain()
	require.Len(t, buf, MainHeaderBytes)

	got, err := ParseMain(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestMainHeaderDatePivot(t *testing.T) {
	t.Run("pre-2000", func(t *testing.T) {
		h := validMain()
		h.Year = 1999

		got, err := ParseMain(h.EncodeMain())
		require.NoError(t, err)
		require.Equal(t, 1999, got.Year)
	})

	t.Run("post-2000", func(t *testing.T) {
		h := validMain()
		h.Year = 2023

		got, err := ParseMain(h.EncodeMain())
		require.NoError(t, err)
		require.Equal(t, 2023, got.Year)
	})
}

func TestParseMainValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(buf []byte)
		wantErr error
	}{
		{
			name:    "bad version",
			mutate:  func(buf []byte) { buf[0] = '2' },
			wantErr: errs.ErrUnsupportedFileType,
		},
		{
			name:    "missing continuous identifier",
			mutate:  func(buf []byte) { copy(buf[offReserved:], "BDF+C") },
			wantErr: errs.ErrUnsupportedFileType,
		},
		{
			name:    "zero signal count",
			mutate:  func(buf []byte) { copy(buf[offSignalCount:], "0   ") },
			wantErr: errs.ErrInvalidSignalCount,
		},
		{
			name:    "signal count above limit",
			mutate:  func(buf []byte) { copy(buf[offSignalCount:], "4097") },
			wantErr: errs.ErrInvalidSignalCount,
		},
		{
			name:    "header size mismatch",
			mutate:  func(buf []byte) { copy(buf[offHeaderBytes:], "512     ") },
			wantErr: errs.ErrInvalidHeader,
		},
		{
			name:    "unparseable duration",
			mutate:  func(buf []byte) { copy(buf[offDuration:], "abc     ") },
			wantErr: errs.ErrInvalidFormat,
		},
		{
			name:    "zero duration",
			mutate:  func(buf []byte) { copy(buf[offDuration:], "0       ") },
			wantErr: errs.ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := validMain().EncodeMain()
			tt.mutate(buf)

			_, err := ParseMain(buf)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("short buffer", func(t *testing.T) {
		_, err := ParseMain(make([]byte, 100))
		require.True(t, errors.Is(err, errs.ErrInvalidHeader))
	})
}

func validDescriptors() []Descriptor {
	return []Descriptor{
		{
			Label:             "EEG Fpz-Cz",
			Transducer:        "AgAgCl electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       -100,
			PhysicalMax:       100,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			Prefilter:         "HP:0.1Hz LP:75Hz",
			SamplesPerRecord:  256,
		},
		{
			Label:            "EDF Annotations",
			PhysicalMin:      -1,
			PhysicalMax:      1,
			DigitalMin:       -32768,
			DigitalMax:       32767,
			SamplesPerRecord: 60,
		},
	}
}

func TestSignalsRoundTrip(t *testing.T) {
	descs := validDescriptors()

	buf := EncodeSignals(descs)
	require.Len(t, buf, len(descs)*SignalHeaderBytes)

	got, err := ParseSignals(buf, len(descs))
	require.NoError(t, err)
	require.Equal(t, descs, got)

	require.False(t, got[0].IsAnnotation())
	require.True(t, got[1].IsAnnotation())
}

func TestParseSignalsValidation(t *testing.T) {
	t.Run("physical range collapsed", func(t *testing.T) {
		descs := validDescriptors()
		descs[0].PhysicalMin = 100
		descs[0].PhysicalMax = 100

		_, err := ParseSignals(EncodeSignals(descs), len(descs))
		require.True(t, errors.Is(err, errs.ErrPhysicalMinEqualsMax))
	})

	t.Run("digital range collapsed", func(t *testing.T) {
		descs := validDescriptors()
		descs[0].DigitalMin = 10
		descs[0].DigitalMax = 10

		_, err := ParseSignals(EncodeSignals(descs), len(descs))
		require.True(t, errors.Is(err, errs.ErrDigitalMinEqualsMax))
	})

	t.Run("truncated block", func(t *testing.T) {
		_, err := ParseSignals(make([]byte, SignalHeaderBytes-1), 1)
		require.True(t, errors.Is(err, errs.ErrInvalidHeader))
	})
}
