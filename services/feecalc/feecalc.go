// Package feecalc computes the premium charged on policy creation.
//
// The fee is a fixed percentage of the coverage amount, clamped into a
// band so small policies still pay a floor premium and large policies
// are not priced out. All amounts are in the token's smallest unit
// (6 decimals).
package feecalc

// Fee parameters. Amounts are in smallest units: 1_000_000 = 1 token.
const (
	// FeePercent is the premium rate applied to the coverage amount.
	FeePercent = 20

	// MinFee is the floor premium (0.2 tokens).
	MinFee int64 = 200_000

	// MaxFee is the ceiling premium (0.5 tokens).
	MaxFee int64 = 500_000
)

// Fee returns the premium for the given coverage amount.
//
// The raw fee is coverage * FeePercent / 100 using integer division,
// then clamped to [MinFee, MaxFee]. Non-positive coverage yields MinFee;
// the caller validates coverage before charging.
func Fee(coverage int64) int64 {
	if coverage <= 0 {
		return MinFee
	}

	fee := coverage * FeePercent / 100
	if fee < MinFee {
		return MinFee
	}
	if fee > MaxFee {
		return MaxFee
	}
	return fee
}

// Total returns the full amount escrowed at creation: coverage plus fee.
func Total(coverage int64) int64 {
	return coverage + Fee(coverage)
}
