package edfplus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullRangeSignal() SignalParam {
	return SignalParam{
		Label:       "EEG Fpz-Cz",
		PhysicalMin: -100, PhysicalMax: 100,
		DigitalMin: -32768, DigitalMax: 32767,
		SamplesPerRecord:  256,
		PhysicalDimension: "uV",
	}
}

func TestToPhysical(t *testing.T) {
	sig := fullRangeSignal()

	require.InDelta(t, 0.0, sig.ToPhysical(0), 1.0)
	require.InDelta(t, 100.0, sig.ToPhysical(32767), 0.1)
	require.InDelta(t, -100.0, sig.ToPhysical(-32768), 0.1)
}

func TestDigitalRoundTrip(t *testing.T) {
	sig := fullRangeSignal()

	for _, d := range []int{-32768, -100, -1, 0, 1, 100, 12345, 32767} {
		got := sig.ToDigital(sig.ToPhysical(d))
		require.InDelta(t, d, got, 1)
	}
}

func TestToDigitalClamps(t *testing.T) {
	sig := fullRangeSignal()

	require.Equal(t, 32767, sig.ToDigital(500))
	require.Equal(t, -32768, sig.ToDigital(-500))
}

func TestDescriptorConversionRoundTrip(t *testing.T) {
	sig := fullRangeSignal()
	sig.Prefilter = "HP:0.1Hz"
	sig.Transducer = "electrode"

	d := sig.descriptor()
	back := signalFromDescriptor(&d)

	require.Equal(t, sig, back)
}
