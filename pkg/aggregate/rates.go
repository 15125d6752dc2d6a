package aggregate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCurrency is returned when a currency is missing from the rate
// snapshot.
var ErrUnknownCurrency = errors.New("unknown currency")

// Rates is a fixed conversion snapshot. PerBase maps a currency code to the
// number of units of that currency one unit of Base buys.
type Rates struct {
	Base    string
	PerBase map[string]float64
}

// NewRates builds a snapshot, normalizing codes to upper case and implicitly
// adding Base at 1.0.
func NewRates(base string, perBase map[string]float64) Rates {
	base = strings.ToUpper(base)
	m := make(map[string]float64, len(perBase)+1)
	for code, v := range perBase {
		m[strings.ToUpper(code)] = v
	}
	m[base] = 1
	return Rates{Base: base, PerBase: m}
}

// Convert converts amount from one currency to another.
func (r Rates) Convert(amount float64, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	fromRate, ok := r.PerBase[from]
	if !ok || fromRate <= 0 {
		return 0, fmt.Errorf("converting from %q: %w", from, ErrUnknownCurrency)
	}
	toRate, ok := r.PerBase[to]
	if !ok || toRate <= 0 {
		return 0, fmt.Errorf("converting to %q: %w", to, ErrUnknownCurrency)
	}
	return amount / fromRate * toRate, nil
}
