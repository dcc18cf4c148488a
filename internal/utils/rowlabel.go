package utils

import (
	"strconv"
	"strings"
)

// Row labels are bijective base-26: A..Z, AA..ZZ, AAA..ZZZ.  Three letters
// cap the ordinal space at 26 + 26² + 26³.
const MaxRowOrdinal = 26 + 26*26 + 26*26*26

// EncodeRowLabel converts a 1-based row ordinal to its letter label
// ("A" for 1, "Z" for 26, "AA" for 27).  Returns "" when n is out of
// the supported range.
func EncodeRowLabel(n int) string {
	if n < 1 || n > MaxRowOrdinal {
		return ""
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		n-- // bijective: shift so the digit range is 0..25 with no zero digit
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// DecodeRowLabel converts a letter label back to its 1-based ordinal.
// Accepts 1 to 3 letters, case-insensitive.  The second return value is
// false for anything else.
func DecodeRowLabel(label string) (int, bool) {
	if len(label) < 1 || len(label) > 3 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			return 0, false
		}
		n = n*26 + int(c-'A') + 1
	}
	return n, true
}

// NormalizeRowLabel upper-cases and validates a raw row label.  Returns the
// canonical form and whether the input was a valid label.
func NormalizeRowLabel(raw string) (string, bool) {
	if _, ok := DecodeRowLabel(raw); !ok {
		return "", false
	}
	return strings.ToUpper(raw), true
}

// FormatSeatColumn renders a seat column number for location strings
// ("A" + "12" -> "A12").
func FormatSeatColumn(col uint32) string {
	return strconv.FormatUint(uint64(col), 10)
}
