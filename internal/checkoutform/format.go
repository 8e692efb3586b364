package checkoutform

import "strings"

const (
	maxCardDigits   = 16
	maxExpiryDigits = 4
)

// Card brands reported by CardBrand.
const (
	BrandVisa       = "VISA"
	BrandMastercard = "MC"
)

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCardNumber strips non-digits, keeps at most 16 digits and groups
// them by four for display. It returns the digit string and the display
// string.
func FormatCardNumber(input string) (digits, display string) {
	digits = digitsOnly(input)
	if len(digits) > maxCardDigits {
		digits = digits[:maxCardDigits]
	}

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return digits, b.String()
}

// FormatExpiry strips non-digits, keeps at most 4 digits and clamps the
// month to 01-12 once two digits are present. More than two digits render
// as MM/YY. It returns the clamped digits and the display string.
func FormatExpiry(input string) (digits, display string) {
	digits = digitsOnly(input)
	if len(digits) > maxExpiryDigits {
		digits = digits[:maxExpiryDigits]
	}
	if len(digits) >= 2 {
		digits = clampMonth(digits[:2]) + digits[2:]
	}
	if len(digits) > 2 {
		return digits, digits[:2] + "/" + digits[2:]
	}
	return digits, digits
}

func clampMonth(mm string) string {
	switch {
	case mm == "00":
		return "01"
	case mm > "12":
		return "12"
	default:
		return mm
	}
}

// FormatSecurityCode keeps only digits.
func FormatSecurityCode(input string) string {
	return digitsOnly(input)
}

// CardBrand guesses the card network from the leading digit.
func CardBrand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return BrandVisa
	case strings.HasPrefix(digits, "5"):
		return BrandMastercard
	default:
		return ""
	}
}
