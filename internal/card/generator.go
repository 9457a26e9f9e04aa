// Package card derives the virtual debit card shown to a user. The card
// number is a pure function of the account number and a refresh seed, so the
// same card renders identically across sessions until the user refreshes it.
package card

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BIN is the fixed issuer prefix (Visa-format bank identification number).
const BIN = "4532"

// fallbackSeed is used when the account number carries no parsable digits.
// Callers must treat such a card as not strongly bound to the account.
const fallbackSeed = 1234

// Linear-congruential generator parameters. These match the issuing service
// exactly; changing any of them changes every derived card number.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// Derive computes the card number for an account at the given refresh seed:
// BIN + 8 generated digits + Luhn check digit, 13 digits total.
// It is deterministic; identical inputs always yield the identical number.
func Derive(accountNumber string, refreshSeed int) string {
	base := numericSeed(accountNumber)
	body := BIN + middleDigits(base+refreshSeed)
	return body + strconv.Itoa(LuhnCheckDigit(body))
}

// numericSeed extracts the digit characters of an account number and parses
// them as the base seed, substituting fallbackSeed when nothing parses.
func numericSeed(accountNumber string) int {
	var digits strings.Builder
	for _, r := range accountNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return fallbackSeed
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		// Digit runs longer than an int can hold fall back too.
		return fallbackSeed
	}
	return n
}

// middleDigits generates the 8 seed-derived digits of the card body.
func middleDigits(seed int) string {
	state := seed
	out := make([]byte, 8)
	for i := range out {
		state = (state*lcgMultiplier + lcgIncrement) % lcgModulus
		out[i] = byte('0' + (state*10)/lcgModulus)
	}
	return string(out)
}

// LuhnCheckDigit computes the trailing check digit for a digit string,
// doubling from the rightmost digit leftward.
func LuhnCheckDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// ValidLuhn reports whether a full card number (check digit included)
// passes the Luhn checksum.
func ValidLuhn(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ExpiryDate returns the MM/YY expiry for a card viewed at the given time.
// Cards are valid for 3 years; the value is recomputed on every view.
func ExpiryDate(now time.Time) string {
	return fmt.Sprintf("%02d/%02d", int(now.Month()), (now.Year()+3)%100)
}

// Format groups a card number into space-separated blocks of 4 for display.
func Format(number string) string {
	var b strings.Builder
	for i, r := range number {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskAccountNumber hides the middle of an account number: first 2 and last 4
// characters kept, the rest replaced by asterisks. Numbers of 6 characters or
// fewer have no middle to hide and are returned whole.
func MaskAccountNumber(accountNumber string) string {
	if accountNumber == "" {
		return "****"
	}
	if len(accountNumber) <= 6 {
		return accountNumber
	}
	masked := len(accountNumber) - 6
	return accountNumber[:2] + strings.Repeat("*", masked) + accountNumber[len(accountNumber)-4:]
}
