// Package errs defines the sentinel errors returned by the edfplus module.
//
// All errors are plain sentinel values so callers can classify failures with
// errors.Is. Call sites wrap them with fmt.Errorf("%w: ...") to attach
// context such as file paths, signal indices, or offending field values.
package errs

import "errors"

var (
	// ErrFileNotFound indicates the target file could not be opened or created.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFormat indicates invalid input to the API: a bad argument,
	// a mutation attempted after the header was locked, or a sample matrix
	// whose shape does not match the configured signals.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrFormat indicates a structural defect inside the file itself, such
	// as a malformed date field or a corrupt annotation block.
	ErrFormat = errors.New("file contains format errors")

	// ErrInvalidSignalIndex indicates a signal index outside the range of
	// user signals in the file.
	ErrInvalidSignalIndex = errors.New("signal index out of range")

	// ErrUnsupportedFileType indicates the file is not EDF+; legacy EDF and
	// other formats are rejected at open time.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrDiscontinuousFile indicates a gap between consecutive data record
	// timestamps; only continuous (EDF+C) recordings are supported.
	ErrDiscontinuousFile = errors.New("file is discontinuous")

	// ErrInvalidHeader indicates the declared header byte count does not
	// match the signal count, or a fixed header field failed validation.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidSignalCount indicates a signal count outside [1, 4096].
	ErrInvalidSignalCount = errors.New("invalid number of signals")

	// ErrPhysicalMinEqualsMax indicates a signal whose physical calibration
	// range is empty, making digital/physical conversion undefined.
	ErrPhysicalMinEqualsMax = errors.New("physical min equals physical max")

	// ErrDigitalMinEqualsMax indicates a signal whose digital range is
	// empty, making digital/physical conversion undefined.
	ErrDigitalMinEqualsMax = errors.New("digital min equals digital max")
)
