package normalization

import (
	"strings"
)

// minMatchLen is how many trailing digits two numbers must share to be
// considered the same line when their prefixes differ (country code, trunk
// prefix). Seven digits keeps "+18004664411" and "8004664411" together
// without collapsing unrelated short numbers.
const minMatchLen = 7

// Phone canonicalizes a dialable number: vanity letters become digits,
// separators and formatting are dropped, a single leading "+" survives.
// Everything after a wait/pause control character is ignored, since the
// post-dial part is not identity-relevant.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune('+')
		case r == ',' || r == ';':
			// wait/pause: stop at the post-dial string
			return b.String()
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			b.WriteByte(vanityDigit(r))
		}
	}
	return b.String()
}

// PhoneMinMatch reduces a normalized number to its loose-match key: the
// trailing minMatchLen digits, ignoring any "+" prefix. Numbers shorter than
// the window match on their full digit string.
func PhoneMinMatch(normalized string) string {
	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) <= minMatchLen {
		return digits
	}
	return digits[len(digits)-minMatchLen:]
}

// PhonesMatch reports whether two raw numbers identify the same line under
// loose matching: equal normalized forms, or equal min-match suffixes.
func PhonesMatch(a, b string) bool {
	na, nb := Phone(a), Phone(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	ma, mb := PhoneMinMatch(na), PhoneMinMatch(nb)
	return ma != "" && ma == mb
}

func vanityDigit(r rune) byte {
	switch {
	case r >= 'a' && r <= 'z':
		r -= 'a' - 'A'
	}
	switch r {
	case 'A', 'B', 'C':
		return '2'
	case 'D', 'E', 'F':
		return '3'
	case 'G', 'H', 'I':
		return '4'
	case 'J', 'K', 'L':
		return '5'
	case 'M', 'N', 'O':
		return '6'
	case 'P', 'Q', 'R', 'S':
		return '7'
	case 'T', 'U', 'V':
		return '8'
	default:
		return '9'
	}
}
