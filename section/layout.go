// Package section implements the fixed-layout EDF+ header sections: the
// 256-byte main header and the column-major per-signal parameter block.
//
// The byte layout is expressed once, as a schema table, and both the encoder
// and the decoder walk the same table. Field widths and offsets never appear
// twice.
package section

import (
	"strconv"

	"github.com/edflab/edfplus/internal/ascii"
)

const (
	// MainHeaderBytes is the size of the fixed file prefix.
	MainHeaderBytes = 256

	// SignalHeaderBytes is the per-signal share of the parameter block.
	SignalHeaderBytes = 256

	// MaxSignals bounds the signal count field, annotation channels included.
	MaxSignals = 4096

	// AnnotationLabel is the exact 16-byte label that marks an annotation
	// channel's descriptor.
	AnnotationLabel = "EDF Annotations "
)

// Main header field offsets and widths. All fields are space-padded ASCII.
const (
	offVersion       = 0
	widthVersion     = 8
	offPatient       = 8
	widthPatient     = 80
	offRecording     = 88
	widthRecording   = 80
	offStartDate     = 168
	widthStartDate   = 8
	offStartTime     = 176
	widthStartTime   = 8
	offHeaderBytes   = 184
	widthHeaderBytes = 8
	offReserved      = 192
	widthReserved    = 44
	offRecordCount   = 236
	widthRecordCount = 8
	offDuration      = 244
	widthDuration    = 8
	offSignalCount   = 252
	widthSignalCount = 4
)

// continuousIdentifier opens the reserved field of every file this module
// writes; files not starting with it are not continuous EDF+.
const continuousIdentifier = "EDF+C"

// Descriptor is one signal's decoded parameter column set. User signals and
// annotation channels share the same on-disk shape.
type Descriptor struct {
	Label             string
	Transducer        string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefilter         string
	SamplesPerRecord  int
	Reserved          string
}

// IsAnnotation reports whether the descriptor belongs to an annotation
// channel rather than a physiological signal.
func (d *Descriptor) IsAnnotation() bool {
	return d.Label == ascii.Trim(AnnotationLabel)
}

// signalField is one column of the per-signal block: its byte width plus the
// accessors that move it between Descriptor and ASCII text.
type signalField struct {
	width int
	get   func(d *Descriptor) string
	set   func(d *Descriptor, text string)
}

// signalSchema lists the columns in on-disk order. The block is column-major:
// each field repeats once per signal before the next field begins. Widths sum
// to SignalHeaderBytes.
var signalSchema = []signalField{
	{16,
		func(d *Descriptor) string { return d.Label },
		func(d *Descriptor, t string) { d.Label = t }},
	{80,
		func(d *Descriptor) string { return d.Transducer },
		func(d *Descriptor, t string) { d.Transducer = t }},
	{8,
		func(d *Descriptor) string { return d.PhysicalDimension },
		func(d *Descriptor, t string) { d.PhysicalDimension = t }},
	{8,
		func(d *Descriptor) string { return physicalText(d.PhysicalMin) },
		func(d *Descriptor, t string) { d.PhysicalMin = ascii.Atof(t) }},
	{8,
		func(d *Descriptor) string { return physicalText(d.PhysicalMax) },
		func(d *Descriptor, t string) { d.PhysicalMax = ascii.Atof(t) }},
	{8,
		func(d *Descriptor) string { return strconv.Itoa(d.DigitalMin) },
		func(d *Descriptor, t string) { d.DigitalMin = ascii.Atoi(t) }},
	{8,
		func(d *Descriptor) string { return strconv.Itoa(d.DigitalMax) },
		func(d *Descriptor, t string) { d.DigitalMax = ascii.Atoi(t) }},
	{80,
		func(d *Descriptor) string { return d.Prefilter },
		func(d *Descriptor, t string) { d.Prefilter = t }},
	{8,
		func(d *Descriptor) string { return strconv.Itoa(d.SamplesPerRecord) },
		func(d *Descriptor, t string) { d.SamplesPerRecord = ascii.Atoi(t) }},
	{32,
		func(d *Descriptor) string { return d.Reserved },
		func(d *Descriptor, t string) { d.Reserved = t }},
}

// physicalText renders a physical min/max into its 8-byte field. Plain
// decimal notation only; text longer than the field is truncated, and a
// truncation that lands on the decimal point drops it too.
func physicalText(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if len(s) > 8 {
		s = s[:8]
		if s[len(s)-1] == '.' {
			s = s[:len(s)-1]
		}
	}

	return s
}
