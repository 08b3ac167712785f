// Package idvalidate implements check-digit validation for the two
// brazilian taxpayer identifier formats (CPF and CNPJ).
package idvalidate

import "strings"

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

func cpfCheckDigit(digits string, startWeight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (startWeight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return rest
}

// CPF reports whether raw contains a checksum-valid 11-digit CPF.
// Non-digit characters are ignored, identifiers with all digits
// identical are rejected.
func CPF(raw string) bool {
	digits := Digits(raw)
	if len(digits) != 11 || allSame(digits) {
		return false
	}
	if cpfCheckDigit(digits[:9], 10) != int(digits[9]-'0') {
		return false
	}
	if cpfCheckDigit(digits[:10], 11) != int(digits[10]-'0') {
		return false
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// CNPJ reports whether raw contains a checksum-valid 14-digit CNPJ.
func CNPJ(raw string) bool {
	digits := Digits(raw)
	if len(digits) != 14 || allSame(digits) {
		return false
	}
	if cnpjCheckDigit(digits[:12], cnpjWeights[1:]) != int(digits[12]-'0') {
		return false
	}
	if cnpjCheckDigit(digits[:13], cnpjWeights) != int(digits[13]-'0') {
		return false
	}
	return true
}

// Any reports whether raw is a valid CPF or CNPJ.
func Any(raw string) bool {
	return CPF(raw) || CNPJ(raw)
}
