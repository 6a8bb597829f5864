// Package money represents currency amounts in minor units (cents). No floats.
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a non-fractional count of minor units.
type Amount int64

var ErrInvalidAmount = errors.New("invalid amount")

const maxFractionDigits = 2

// Parse reads a decimal string such as "150", "150.5" or "150.50".
func Parse(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAmount
	}
	neg := false
	if raw[0] == '-' || raw[0] == '+' {
		neg = raw[0] == '-'
		raw = raw[1:]
	}
	whole, frac, hasDot := strings.Cut(raw, ".")
	if whole == "" || (hasDot && frac == "") || len(frac) > maxFractionDigits {
		return 0, ErrInvalidAmount
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, ErrInvalidAmount
	}
	for len(frac) < maxFractionDigits {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if neg {
		units = -units
	}
	return Amount(units), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (a Amount) IsPositive() bool { return a > 0 }

// String renders the amount with exactly two fraction digits.
func (a Amount) String() string {
	units := int64(a)
	sign := ""
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%02d", sign, units/100, units%100)
}

// MarshalJSON emits a JSON number, e.g. 150.50.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value passes the amount to the driver as a numeric literal.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan reads numeric columns returned by the driver.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
		return nil
	case int64:
		*a = Amount(v * 100)
		return nil
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case float64:
		return a.scanString(strconv.FormatFloat(v, 'f', maxFractionDigits, 64))
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
