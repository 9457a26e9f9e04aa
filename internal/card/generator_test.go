package card

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveKnownVectors(t *testing.T) {
	cases := []struct {
		account string
		seed    int
		want    string
	}{
		{"ACC-00012345", 0, "4532403222704"},
		{"ACC-00012345", 1, "4532481422283"},
		{"9876543210", 3, "4532664351036"},
		{"1234", 0, "4532422041275"},
	}
	for _, c := range cases {
		got := Derive(c.account, c.seed)
		if got != c.want {
			t.Errorf("Derive(%q, %d) = %q, want %q", c.account, c.seed, got, c.want)
		}
	}
}

func TestDeriveDeterministic(t *testing.T) {
	for seed := 0; seed < 10; seed++ {
		a := Derive("ACC-10000001", seed)
		b := Derive("ACC-10000001", seed)
		if a != b {
			t.Fatalf("seed %d: %q != %q", seed, a, b)
		}
	}
}

func TestDeriveShape(t *testing.T) {
	n := Derive("ACC-10000002", 0)
	if len(n) != 13 {
		t.Fatalf("card number length = %d, want 13: %q", len(n), n)
	}
	if !strings.HasPrefix(n, BIN) {
		t.Errorf("card number %q missing issuer prefix %q", n, BIN)
	}
}

// Every derived number must carry a valid Luhn checksum, for any seed.
func TestDeriveLuhnValid(t *testing.T) {
	accounts := []string{"", "abc", "0000000001", "9999999999", "ACC-00012345", "42"}
	for _, acct := range accounts {
		for seed := 0; seed < 50; seed++ {
			n := Derive(acct, seed)
			if !ValidLuhn(n) {
				t.Fatalf("Derive(%q, %d) = %q fails Luhn", acct, seed, n)
			}
		}
	}
}

func TestDeriveSeedFallback(t *testing.T) {
	want := Derive("1234", 0)
	if got := Derive("", 0); got != want {
		t.Errorf("empty account: got %q, want fallback %q", got, want)
	}
	if got := Derive("abc", 0); got != want {
		t.Errorf("non-numeric account: got %q, want fallback %q", got, want)
	}
	if got := Derive("", 5); got != "4532642124802" {
		t.Errorf("fallback with seed 5: got %q, want 4532642124802", got)
	}
}

func TestRefreshSeedChangesBody(t *testing.T) {
	before := Derive("ACC-00012345", 0)
	after := Derive("ACC-00012345", 1)
	if before == after {
		t.Fatalf("refresh produced identical number %q", before)
	}
}

func TestLuhnCheckDigit(t *testing.T) {
	// Classic vector: 7992739871 takes check digit 3.
	if got := LuhnCheckDigit("7992739871"); got != 3 {
		t.Errorf("LuhnCheckDigit(7992739871) = %d, want 3", got)
	}
}

func TestValidLuhn(t *testing.T) {
	valid := []string{"79927398713", "4532015112830366"}
	for _, n := range valid {
		if !ValidLuhn(n) {
			t.Errorf("ValidLuhn(%q) = false, want true", n)
		}
	}
	invalid := []string{"", "79927398710", "4532a15112830366"}
	for _, n := range invalid {
		if ValidLuhn(n) {
			t.Errorf("ValidLuhn(%q) = true, want false", n)
		}
	}
}

func TestExpiryDate(t *testing.T) {
	now := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	if got := ExpiryDate(now); got != "08/29" {
		t.Errorf("ExpiryDate = %q, want 08/29", got)
	}
	jan := time.Date(2030, time.January, 2, 0, 0, 0, 0, time.UTC)
	if got := ExpiryDate(jan); got != "01/33" {
		t.Errorf("ExpiryDate = %q, want 01/33", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format("4532403222704"); got != "4532 4032 2270 4" {
		t.Errorf("Format = %q", got)
	}
}

func TestMaskAccountNumber(t *testing.T) {
	cases := map[string]string{
		"":           "****",
		"1234":       "1234",
		"12345":      "12345", // too short for the 2+4 window, shown whole
		"123456":     "123456",
		"1234567":    "12*4567",
		"1234567890": "12****7890",
	}
	for in, want := range cases {
		if got := MaskAccountNumber(in); got != want {
			t.Errorf("MaskAccountNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
