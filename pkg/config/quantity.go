package config

import (
	"strconv"
	"strings"

	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// Quantity is a units.Value decoded from a configuration string like
// "3000 mm/min" or "0.5mm". Configuration is the only layer that sees
// unit suffixes; everything downstream works on units.Values.
type Quantity struct {
	units.Value
}

// UnmarshalText decodes a quantity string.
func (q *Quantity) UnmarshalText(text []byte) error {
	v, err := ParseQuantity(string(text))
	if err != nil {
		return err
	}
	q.Value = v
	return nil
}

// IsSet reports whether the quantity was present in the file.
func (q Quantity) IsSet() bool {
	return q.Unit != ""
}

// ParseQuantity splits a magnitude prefix from a unit suffix and
// resolves the unit symbol.
func ParseQuantity(s string) (units.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return units.Value{}, errors.New(errors.KindConfig, "empty quantity")
	}

	split := len(s)
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '+' || r == '-' {
			continue
		}
		// Exponent forms like 1e-3 keep consuming.
		if (r == 'e' || r == 'E') && i+1 < len(s) && (s[i+1] == '+' || s[i+1] == '-' || (s[i+1] >= '0' && s[i+1] <= '9')) {
			continue
		}
		split = i
		break
	}

	mag, err := strconv.ParseFloat(strings.TrimSpace(s[:split]), 64)
	if err != nil {
		return units.Value{}, errors.New(errors.KindConfig, "malformed quantity %q", s)
	}
	unit, err := units.ParseUnit(strings.TrimSpace(s[split:]))
	if err != nil {
		return units.Value{}, errors.New(errors.KindConfig, "quantity %q has an unknown unit", s)
	}
	return units.Value{Magnitude: mag, Unit: unit}, nil
}

// require validates that a set quantity has the wanted dimension.
// Unset optional quantities pass through as the zero Value.
func (q Quantity) require(dim units.Dimension, field, where string, optional bool) (units.Value, error) {
	if !q.IsSet() {
		if optional {
			return units.Value{}, nil
		}
		return units.Value{}, errors.New(errors.KindConfig, "%s: %s is required", where, field)
	}
	if q.Dimension() != dim {
		return units.Value{}, errors.New(errors.KindConfig,
			"%s: %s must be a %s, got %q", where, field, dim, q.Unit)
	}
	return q.Value, nil
}
