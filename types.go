package edfplus

import (
	"math"
	"time"

	"github.com/edflab/edfplus/section"
)

// SignalParam describes one physiological signal: its identity, its
// physical and digital value ranges, and its per-record sample count. The
// ranges define the linear mapping between stored 16-bit codes and physical
// units.
type SignalParam struct {
	// Label identifies the signal, e.g. "EEG Fpz-Cz". At most 16 bytes
	// survive on disk.
	Label string

	// PhysicalMin and PhysicalMax bound the signal in physical units.
	// They must differ.
	PhysicalMin float64
	PhysicalMax float64

	// DigitalMin and DigitalMax bound the stored codes, at most the full
	// int16 range. They must differ.
	DigitalMin int
	DigitalMax int

	// SamplesPerRecord is how many samples of this signal each data record
	// carries.
	SamplesPerRecord int

	// SamplesInFile is the total sample count, populated by the reader.
	SamplesInFile int64

	// PhysicalDimension is the unit text, e.g. "uV".
	PhysicalDimension string

	// Prefilter and Transducer are free-text acquisition metadata.
	Prefilter  string
	Transducer string
}

// BitValue returns the physical span of one digital code increment.
func (p *SignalParam) BitValue() float64 {
	return (p.PhysicalMax - p.PhysicalMin) / float64(p.DigitalMax-p.DigitalMin)
}

// Offset returns the digital offset of the linear mapping.
func (p *SignalParam) Offset() float64 {
	return p.PhysicalMax/p.BitValue() - float64(p.DigitalMax)
}

// ToPhysical converts a stored digital code to physical units.
func (p *SignalParam) ToPhysical(digital int) float64 {
	return p.BitValue() * (p.Offset() + float64(digital))
}

// ToDigital converts a physical value to its digital code, rounding to the
// nearest code and clamping into [DigitalMin, DigitalMax].
func (p *SignalParam) ToDigital(physical float64) int {
	d := int(math.Round(physical/p.BitValue() - p.Offset()))
	if d < p.DigitalMin {
		return p.DigitalMin
	}
	if d > p.DigitalMax {
		return p.DigitalMax
	}

	return d
}

// descriptor renders the signal as its on-disk parameter columns.
func (p *SignalParam) descriptor() section.Descriptor {
	return section.Descriptor{
		Label:             p.Label,
		Transducer:        p.Transducer,
		PhysicalDimension: p.PhysicalDimension,
		PhysicalMin:       p.PhysicalMin,
		PhysicalMax:       p.PhysicalMax,
		DigitalMin:        p.DigitalMin,
		DigitalMax:        p.DigitalMax,
		Prefilter:         p.Prefilter,
		SamplesPerRecord:  p.SamplesPerRecord,
	}
}

// signalFromDescriptor recovers a SignalParam from a decoded descriptor.
func signalFromDescriptor(d *section.Descriptor) SignalParam {
	return SignalParam{
		Label:             d.Label,
		Transducer:        d.Transducer,
		PhysicalDimension: d.PhysicalDimension,
		PhysicalMin:       d.PhysicalMin,
		PhysicalMax:       d.PhysicalMax,
		DigitalMin:        d.DigitalMin,
		DigitalMax:        d.DigitalMax,
		Prefilter:         d.Prefilter,
		SamplesPerRecord:  d.SamplesPerRecord,
	}
}

// Header is the decoded file metadata a Reader exposes. Annotation channels
// are internal plumbing and do not appear in Signals.
type Header struct {
	// Signals lists the physiological signals in on-disk order.
	Signals []SignalParam

	// StartTime is the recording start stamp at one-second resolution;
	// StartTimeSubsecond carries the sub-second part in ticks, recovered
	// from the first record's timestamp marker.
	StartTime          time.Time
	StartTimeSubsecond int64

	// DataRecords is the record count; RecordDuration is one record's
	// length in ticks; FileDuration is their product.
	DataRecords    int64
	RecordDuration int64
	FileDuration   int64

	// AnnotationsInFile is an approximate annotation count taken from a
	// bounded pre-scan of the first 100 records. Files with more records
	// may hold additional annotations this count misses; Annotations() is
	// the authoritative list.
	AnnotationsInFile int

	// Patient identification subfields.
	PatientCode       string
	Sex               string
	Birthdate         string
	PatientName       string
	PatientAdditional string

	// Recording identification subfields.
	AdminCode           string
	Technician          string
	Equipment           string
	RecordingAdditional string
}
