package edfplus

import "github.com/edflab/edfplus/tal"

// Annotation is a time-stamped event attached to a recording. Onset and
// Duration are in ticks (see TimeDimension); Duration -1 means unknown or
// instantaneous.
type Annotation = tal.Annotation
