package models

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Cents is a non-fractional money amount in USD cents. It marshals as dollars.
type Cents int64

// FromDollars rounds a dollar amount to the nearest cent.
func FromDollars(d float64) Cents {
	return Cents(math.Round(d * 100))
}

func (c Cents) Dollars() float64 { return float64(c) / 100 }

func (c Cents) String() string {
	return fmt.Sprintf("$%.2f", c.Dollars())
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(c.Dollars(), 'f', 2, 64)), nil
}

func (c *Cents) UnmarshalJSON(b []byte) error {
	var d float64
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("cents: %w", err)
	}
	*c = FromDollars(d)
	return nil
}

// FlexPrice holds a price exactly as a strategy reported it: a JSON string
// ("$68.00") or a JSON number (68). Set is false when the field was absent.
type FlexPrice struct {
	Raw string
	Set bool
}

// PriceText wraps a textual price.
func PriceText(s string) FlexPrice { return FlexPrice{Raw: s, Set: true} }

// PriceNumber wraps a numeric price.
func PriceNumber(f float64) FlexPrice {
	return FlexPrice{Raw: strconv.FormatFloat(f, 'f', -1, 64), Set: true}
}

func (p FlexPrice) MarshalJSON() ([]byte, error) {
	if !p.Set {
		return []byte("null"), nil
	}
	return json.Marshal(p.Raw)
}

func (p *FlexPrice) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "":
		*p = FlexPrice{}
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*p = FlexPrice{Raw: str, Set: true}
	default:
		*p = FlexPrice{Raw: s, Set: true}
	}
	return nil
}

var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// Cents strips everything but digits and dots, then parses what is left.
// Unparseable, negative or non-finite values are ErrMalformedItem; the
// caller decides what to do with zero.
func (p FlexPrice) Cents() (Cents, error) {
	if !p.Set {
		return 0, fmt.Errorf("%w: missing price", ErrMalformedItem)
	}
	digits := nonPriceChars.ReplaceAllString(p.Raw, "")
	if digits == "" {
		return 0, fmt.Errorf("%w: price %q has no digits", ErrMalformedItem, p.Raw)
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%w: price %q", ErrMalformedItem, p.Raw)
	}
	return FromDollars(f), nil
}
