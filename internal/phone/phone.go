package phone

import "strings"

// DefaultCountryCode is applied to numbers written in local form
// (leading zero). Most of our customers are Malaysian repair shops.
const DefaultCountryCode = "+60"

const (
	minDigits = 10
	maxDigits = 16
)

var formatting = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// Normalize canonicalizes a raw phone string to +<countrycode><digits>
// form. Returns ok=false when the input cannot be a valid number;
// callers must treat that as "cannot schedule".
func Normalize(raw string, countryCode string) (string, bool) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	s := formatting.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	if !strings.HasPrefix(s, "+") {
		switch {
		case strings.HasPrefix(s, "00"):
			s = "+" + s[2:]
		case strings.HasPrefix(s, "0"):
			s = countryCode + s[1:]
		default:
			s = "+" + s
		}
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	n := digits.Len()
	if n < minDigits || n > maxDigits {
		return "", false
	}
	return "+" + digits.String(), true
}
