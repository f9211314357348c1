package series

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Rounding selects how digits beyond the requested precision are dropped.
type Rounding int

const (
	// RoundUp rounds away from zero.
	RoundUp Rounding = iota
	// RoundDown rounds toward zero.
	RoundDown
)

func (r Rounding) String() string {
	switch r {
	case RoundUp:
		return "up"
	case RoundDown:
		return "down"
	default:
		return fmt.Sprintf("Rounding(%d)", int(r))
	}
}

// FormatDecimal parses value as a base-10 decimal, rounds it to places
// fractional digits and renders it without trailing zeros.
func FormatDecimal(value string, places int32, mode Rounding) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("parse decimal %q: %w", value, err)
	}

	switch mode {
	case RoundUp:
		d = d.RoundUp(places)
	case RoundDown:
		d = d.RoundDown(places)
	default:
		return "", fmt.Errorf("unknown rounding mode %s", mode)
	}
	return d.String(), nil
}
