// Package ascii implements the non-localized ASCII numeric parsing and
// formatting used throughout the EDF+ header and TAL codecs.
//
// EDF+ stores every numeric field as space-padded ASCII text. The parsers
// here walk digit bytes explicitly instead of delegating to a locale-aware
// library, and they are deliberately tolerant: a field that is empty or
// contains garbage parses to zero, matching how established EDF tooling
// treats sloppy headers.
package ascii

// Atoi parses a signed decimal integer from an EDF header field.
//
// Leading and trailing spaces are ignored, a single leading '+' or '-' is
// honored, and parsing stops at the first non-digit byte. Malformed or empty
// input yields 0.
func Atoi(s string) int {
	s = trim(s)
	if s == "" {
		return 0
	}

	i := 0
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		i++
	}

	n := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}

	return n
}

// Atof parses a signed decimal number with an optional fractional part.
//
// Same tolerance rules as Atoi: surrounding spaces are stripped and
// malformed input yields 0. Exponent notation is not part of EDF+ and is
// not accepted.
func Atof(s string) float64 {
	s = trim(s)
	if s == "" {
		return 0
	}

	i := 0
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		i++
	}

	var value float64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		value = value*10 + float64(c-'0')
	}

	if i < len(s) && s[i] == '.' {
		i++
		scale := 0.1
		for ; i < len(s); i++ {
			c := s[i]
			if c < '0' || c > '9' {
				break
			}
			value += float64(c-'0') * scale
			scale /= 10
		}
	}

	if neg {
		return -value
	}

	return value
}

// IsInteger reports whether s is a valid space-padded integer field: an
// optional sign followed by at least one ASCII digit.
func IsInteger(s string) bool {
	s = trim(s)
	if s == "" {
		return false
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// IsNumber reports whether s matches digits with an optional sign and an
// optional fractional part: [+-]?digits(.digits)?
func IsNumber(s string) bool {
	s = trim(s)
	if s == "" {
		return false
	}

	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}

	intDigits := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		intDigits++
	}
	if intDigits == 0 {
		return false
	}
	if i == len(s) {
		return true
	}
	if s[i] != '.' {
		return false
	}
	i++
	fracDigits := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		fracDigits++
	}

	return fracDigits > 0
}

// PadField returns s space-padded (or truncated) to exactly width bytes.
func PadField(s string, width int) []byte {
	field := make([]byte, width)
	for i := range field {
		field[i] = ' '
	}
	copy(field, s)

	return field
}

// trim removes leading and trailing ASCII spaces and NULs without touching
// other whitespace; EDF fields are padded with 0x20 only, but NUL padding
// appears in files produced by lenient writers.
func trim(s string) string {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == 0) {
		start++
	}
	end := len(s)
	for end > start && (s[end-1] == ' ' || s[end-1] == 0) {
		end--
	}

	return s[start:end]
}

// Trim exposes trim for header field extraction.
func Trim(s string) string {
	return trim(s)
}
