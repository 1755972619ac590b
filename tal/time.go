package tal

import (
	"fmt"

	"github.com/edflab/edfplus/errs"
)

// ParseTicks converts a TAL time token into 100ns ticks.
//
// The token has the form [+-]?digits(.digits)?. The integer part scales by
// TimeDimension; up to seven fractional digits are honored, the rest are
// discarded. Conversion is pure integer arithmetic so every representable
// tick value round-trips exactly.
//
// Parameters:
//   - s: Time text, e.g. "2.5", "-0.0000001", "+13"
//
// Returns:
//   - int64: Tick value
//   - error: ErrInvalidFormat when the token is empty or malformed
func ParseTicks(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty time token", errs.ErrInvalidFormat)
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("%w: bare sign in time token", errs.ErrInvalidFormat)
	}

	var intPart, fracPart int64
	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		intPart = intPart*10 + int64(c-'0')
	}
	if i == 0 {
		return 0, fmt.Errorf("%w: time token %q has no digits", errs.ErrInvalidFormat, s)
	}

	fracDigits := 0
	if i < len(s) {
		if s[i] != '.' {
			return 0, fmt.Errorf("%w: unexpected byte %q in time token", errs.ErrInvalidFormat, s[i])
		}
		i++
		for ; i < len(s); i++ {
			c := s[i]
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: unexpected byte %q in time token", errs.ErrInvalidFormat, c)
			}
			if fracDigits < 7 {
				fracPart = fracPart*10 + int64(c-'0')
				fracDigits++
			}
		}
	}

	value := intPart * TimeDimension
	if fracDigits > 0 {
		scale := int64(1)
		for d := fracDigits; d < 7; d++ {
			scale *= 10
		}
		value += fracPart * scale
	}
	if neg {
		value = -value
	}

	return value, nil
}

// FormatTicks renders ticks as a TAL time token: decimal seconds with up to
// seven fractional digits, trailing zeros and a bare decimal point stripped.
// The result carries no sign for non-negative values; onsets gain their
// mandatory '+' prefix at encode time.
func FormatTicks(ticks int64) string {
	neg := ticks < 0
	if neg {
		ticks = -ticks
	}

	sec := ticks / TimeDimension
	frac := ticks % TimeDimension

	var out []byte
	if neg {
		out = append(out, '-')
	}
	out = append(out, []byte(fmt.Sprintf("%d", sec))...)

	if frac != 0 {
		digits := fmt.Sprintf("%07d", frac)
		end := len(digits)
		for end > 0 && digits[end-1] == '0' {
			end--
		}
		out = append(out, '.')
		out = append(out, digits[:end]...)
	}

	return string(out)
}

// SecondsToTicks converts floating seconds to ticks, rounding to the
// nearest tick. Used at the API boundary where callers supply seconds.
func SecondsToTicks(seconds float64) int64 {
	if seconds >= 0 {
		return int64(seconds*float64(TimeDimension) + 0.5)
	}

	return -int64(-seconds*float64(TimeDimension) + 0.5)
}
