package validate

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeTaxID strips punctuation from a CPF (11 digits) or CNPJ
// (14 digits) and verifies its check digits.
func NormalizeTaxID(s string) (string, error) {
	digits, problem := normalizeTaxID(s)
	if problem != "" {
		return "", eris.Wrap(ErrInvalid, problem)
	}
	return digits, nil
}

func normalizeTaxID(s string) (string, string) {
	digits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '/' || r == ' ':
			return -1
		default:
			return 'x'
		}
	}, s)
	if strings.ContainsRune(digits, 'x') {
		return "", fmt.Sprintf("tax id %q contains invalid characters", s)
	}

	var ok bool
	switch len(digits) {
	case 11:
		ok = validCPF(digits)
	case 14:
		ok = validCNPJ(digits)
	default:
		return "", fmt.Sprintf("tax id %q must have 11 (CPF) or 14 (CNPJ) digits", s)
	}
	if !ok {
		return "", fmt.Sprintf("tax id %q has invalid check digits", s)
	}
	return digits, ""
}

func validCPF(d string) bool {
	if repeated(d) {
		return false
	}
	return cpfDigit(d[:9], 10) == int(d[9]-'0') &&
		cpfDigit(d[:10], 11) == int(d[10]-'0')
}

func cpfDigit(d string, weight int) int {
	sum := 0
	for i := range len(d) {
		sum += int(d[i]-'0') * (weight - i)
	}
	r := sum * 10 % 11
	if r == 10 {
		return 0
	}
	return r
}

func validCNPJ(d string) bool {
	if repeated(d) {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == int(d[12]-'0') &&
		cnpjDigit(d[:13], cnpjWeights2) == int(d[13]-'0')
}

func cnpjDigit(d string, weights []int) int {
	sum := 0
	for i := range len(d) {
		sum += int(d[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func repeated(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}
