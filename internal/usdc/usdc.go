// Package usdc provides exact-precision billing-token amount handling using
// integer arithmetic. All amounts are stored as MicroUSDC base units
// (1 = 0.000001 of the token, i.e. $1.00 = 1_000_000).
package usdc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MicroUSDC represents a billing-token amount in base units (1 = 0.000001).
// $1.00 = 1_000_000 microUSDC. $0.001 = 1_000 microUSDC.
type MicroUSDC int64

// Scale is the number of base units per whole token (10^6).
const Scale = 1_000_000

// FromFloat converts a human-readable float (e.g. 0.001) to MicroUSDC.
// Uses math.Round to avoid float truncation.
func FromFloat(f float64) MicroUSDC {
	return MicroUSDC(math.Round(f * Scale))
}

// Float returns the human-readable float64 value.
func (m MicroUSDC) Float() float64 {
	return float64(m) / Scale
}

// RoundMul multiplies by a pricing factor and rounds to the nearest base
// unit, which is equivalent to rounding the human-readable amount to six
// decimal places.
func (m MicroUSDC) RoundMul(factor float64) MicroUSDC {
	return MicroUSDC(math.Round(float64(m) * factor))
}

// Decimal returns the amount as a decimal string with exactly six
// fractional digits, the wire form used in 402 challenge bodies.
// Examples: 1000 → "0.001000", 1500 → "0.001500", 1250000 → "1.250000"
func (m MicroUSDC) Decimal() string {
	negative := m < 0
	var abs uint64
	if negative {
		if m == MicroUSDC(math.MinInt64) {
			abs = uint64(math.MaxInt64) + 1
		} else {
			abs = uint64(-int64(m))
		}
	} else {
		abs = uint64(m)
	}
	s := fmt.Sprintf("%d.%06d", abs/Scale, abs%Scale)
	if negative {
		return "-" + s
	}
	return s
}

func formatMicroUSDC(abs uint64) string {
	whole := abs / Scale
	frac := abs % Scale

	// Format with 6 decimal places
	s := fmt.Sprintf("%d.%06d", whole, frac)

	// Trim trailing zeros but keep minimum 2 decimal places
	dotIdx := strings.IndexByte(s, '.')
	minKeep := dotIdx + 3 // at least ".XX"
	lastNonZero := len(s) - 1
	for lastNonZero > minKeep-1 && s[lastNonZero] == '0' {
		lastNonZero--
	}
	return s[:lastNonZero+1]
}

// String returns a human-readable string with minimum 2 decimal places,
// trailing zeros trimmed beyond that.
// Examples: 1000000 → "1.00", 1000 → "0.001", 1250000 → "1.25", 100 → "0.0001"
func (m MicroUSDC) String() string {
	negative := m < 0
	var abs uint64
	if negative {
		if m == MicroUSDC(math.MinInt64) {
			abs = uint64(math.MaxInt64) + 1
		} else {
			abs = uint64(-int64(m))
		}
	} else {
		abs = uint64(m)
	}
	s := formatMicroUSDC(abs)

	if negative {
		return "-" + s
	}
	return s
}

// MarshalJSON outputs the raw integer as a JSON string: "1250000".
func (m MicroUSDC) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatInt(int64(m), 10) + `"`), nil
}

// UnmarshalJSON parses from a JSON string ("1250000") or number (1250000).
func (m *MicroUSDC) UnmarshalJSON(data []byte) error {
	s := string(data)

	// Handle quoted string: "1250000"
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("usdc: cannot parse %q as MicroUSDC: %w", string(data), err)
	}
	*m = MicroUSDC(v)
	return nil
}
