package models

import "strings"

// Address identifies an account on the external token ledger.
// Addresses are treated as opaque, case-insensitive hex strings.
type Address string

// ZeroAddress is the null identity. It is never a valid policy owner or target.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases an address so map keys and comparisons are stable.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// IsZero reports whether the address is empty or the null identity.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}
