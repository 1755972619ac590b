package tal

import "github.com/edflab/edfplus/internal/ascii"

// parseState enumerates the decoder's position inside an annotation unit.
type parseState uint8

const (
	// stateOnset accumulates the onset time token.
	stateOnset parseState = iota
	// stateDuration accumulates the duration token after a 0x15.
	stateDuration
	// stateDescription accumulates the description text.
	stateDescription
)

// ParseBlock decodes one annotation-channel block of a single data record.
//
// The block must be the channel's full on-disk slice (samples_per_record x 2
// bytes). A block whose final byte is not NUL yields no annotations; this is
// not an error. Any structural defect encountered mid-block (a NUL not
// preceded by 0x14, a malformed time token, a misplaced 0x15) aborts the
// remainder of that block only: units already decoded are kept, and other
// blocks and records are unaffected.
//
// When expectTimestamp is true (channel 0 of any record) and the block's
// first unit carries an empty description, that unit is the record's
// timestamp pseudo-annotation: it is not emitted, and its onset is returned
// as the record stamp instead.
//
// Parameters:
//   - block: One channel's bytes for one data record
//   - expectTimestamp: Whether the first unit may be a timestamp marker
//
// Returns:
//   - []Annotation: Decoded user annotations, in block order
//   - int64: Record timestamp in ticks, when present
//   - bool: Whether a timestamp marker was found
func ParseBlock(block []byte, expectTimestamp bool) ([]Annotation, int64, bool) {
	var anns []Annotation
	stamp, hasStamp := scanBlock(block, expectTimestamp, func(ann Annotation) {
		anns = append(anns, ann)
	})

	return anns, stamp, hasStamp
}

// CountBlock is the allocation-free counting variant of ParseBlock, used by
// the bounded annotation pre-scan. It applies the same state machine and
// recovery rules and returns how many user annotations the block holds.
func CountBlock(block []byte, expectTimestamp bool) int {
	count := 0
	scanBlock(block, expectTimestamp, func(Annotation) {
		count++
	})

	return count
}

// scanBlock runs the TAL state machine over one block, invoking emit for
// every decoded user annotation. It returns the record timestamp when the
// first unit is a timestamp marker.
func scanBlock(block []byte, expectTimestamp bool, emit func(Annotation)) (int64, bool) {
	max := len(block)
	if max == 0 || block[max-1] != 0x00 {
		return 0, false
	}

	var (
		state      = stateOnset
		token      []byte
		onsetTicks int64
		durTicks   int64
		durSet     bool
		unitIndex  int
		zeros      int
		stamp      int64
		hasStamp   bool
	)

	resetUnit := func() {
		state = stateOnset
		token = token[:0]
		durSet = false
	}

	for k := 0; k < max-1; k++ {
		b := block[k]

		if b == 0x00 {
			// A TAL terminator is only legal directly after a field
			// terminator; anything else is a defect that voids the rest
			// of the block.
			if zeros == 0 {
				if k > 0 && block[k-1] != 0x14 {
					return stamp, hasStamp
				}
				resetUnit()
			}
			zeros++

			continue
		}
		if zeros > 1 {
			// Content after the zero padding has begun.
			return stamp, hasStamp
		}
		zeros = 0

		switch state {
		case stateOnset:
			switch b {
			case 0x15:
				if durSet || !ascii.IsNumber(string(token)) {
					return stamp, hasStamp
				}
				ticks, err := ParseTicks(string(token))
				if err != nil {
					return stamp, hasStamp
				}
				onsetTicks = ticks
				token = token[:0]
				state = stateDuration
			case 0x14:
				if !ascii.IsNumber(string(token)) {
					return stamp, hasStamp
				}
				ticks, err := ParseTicks(string(token))
				if err != nil {
					return stamp, hasStamp
				}
				onsetTicks = ticks
				token = token[:0]
				state = stateDescription
			case '+':
				// The mandatory onset prefix is consumed, not stored.
				if len(token) != 0 {
					return stamp, hasStamp
				}
			default:
				token = append(token, b)
			}

		case stateDuration:
			switch b {
			case 0x15:
				return stamp, hasStamp
			case 0x14:
				if !isUnsignedNumber(string(token)) {
					return stamp, hasStamp
				}
				ticks, err := ParseTicks(string(token))
				if err != nil {
					return stamp, hasStamp
				}
				durTicks = ticks
				durSet = true
				token = token[:0]
				state = stateDescription
			default:
				token = append(token, b)
			}

		case stateDescription:
			switch b {
			case 0x15:
				return stamp, hasStamp
			case 0x14:
				desc := string(token)
				if unitIndex == 0 && expectTimestamp && desc == "" {
					stamp = onsetTicks
					hasStamp = true
				} else {
					duration := int64(-1)
					if durSet {
						duration = durTicks
					}
					emit(Annotation{Onset: onsetTicks, Duration: duration, Description: desc})
				}
				unitIndex++
				resetUnit()
			default:
				token = append(token, b)
			}
		}
	}

	return stamp, hasStamp
}

// isUnsignedNumber reports whether s matches digits(.digits)? with no sign;
// TAL duration tokens, unlike onsets, may not be negative.
func isUnsignedNumber(s string) bool {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return false
	}

	return ascii.IsNumber(s)
}
