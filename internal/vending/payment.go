package vending

import "strings"

// ProofValidator decides whether a payment proof string is acceptable.
// Validation is format-only; no actual payment verification happens.
type ProofValidator interface {
	Valid(proof string) bool
}

// ProofValidatorFunc adapts a bare predicate to the ProofValidator interface.
type ProofValidatorFunc func(string) bool

// Valid executes the underlying predicate.
func (f ProofValidatorFunc) Valid(proof string) bool {
	return f(proof)
}

// PrefixValidator accepts proofs starting with the given payment-provider URL
// prefix. Surrounding whitespace is ignored.
func PrefixValidator(prefix string) ProofValidatorFunc {
	return func(proof string) bool {
		return prefix != "" && strings.HasPrefix(strings.TrimSpace(proof), prefix)
	}
}
