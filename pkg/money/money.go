// Package money provides a fixed-point, two decimal place monetary amount.
//
// Amounts never pass through binary floating point. Division is not offered;
// values that arrive with more precision are rounded half-even to cents.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const scale = 2

var ErrInvalidAmount = errors.New("invalid_amount")

// Amount is an immutable monetary value with two decimal places.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{d: decimal.Zero}

// Parse builds an Amount from a decimal string such as "800.00" or "-300".
func Parse(raw string) (Amount, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return Amount{d: d.RoundBank(scale)}, nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(raw string) Amount {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCents builds an Amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -scale)}
}

func fromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.RoundBank(scale)}
}

func (a Amount) Add(b Amount) Amount { return fromDecimal(a.d.Add(b.d)) }
func (a Amount) Sub(b Amount) Amount { return fromDecimal(a.d.Sub(b.d)) }
func (a Amount) Neg() Amount { return fromDecimal(a.d.Neg()) }

// Mul multiplies by an integer quantity.
func (a Amount) Mul(qty int64) Amount {
	return fromDecimal(a.d.Mul(decimal.NewFromInt(qty)))
}

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }
func (a Amount) IsZero() bool { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Cents returns the amount as an integer number of cents.
func (a Amount) Cents() int64 {
	return a.d.Shift(scale).IntPart()
}

// String renders the amount with exactly two decimals, e.g. "800.00".
func (a Amount) String() string {
	return a.d.StringFixedBank(scale)
}

// Display renders the amount for people, e.g. "$800.00".
func (a Amount) Display() string {
	if a.IsNegative() {
		return "-$" + a.Neg().String()
	}
	return "$" + a.String()
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Max returns the larger amount.
func Max(a, b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	a.d = d.RoundBank(scale)
	return nil
}

// GormDataType keeps AutoMigrate on an exact numeric column.
func (Amount) GormDataType() string {
	return "numeric"
}

// GormDBDataType drops the precision suffix on sqlite, whose DDL parser
// cannot re-read decimal(12,2) when migrating an existing table.
func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "numeric"
	}
	return "decimal(12,2)"
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Zero
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
