package money

import (
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "two decimals", in: "800.00", want: "800.00"},
		{name: "integer", in: "1000", want: "1000.00"},
		{name: "negative", in: "-300.5", want: "-300.50"},
		{name: "half even down", in: "0.125", want: "0.12"},
		{name: "half even up", in: "0.135", want: "0.14"},
		{name: "whitespace", in: " 12.30 ", want: "12.30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "$5"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestArithmeticIsExact(t *testing.T) {
	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.10"))
	}
	assert.True(t, total.Equal(MustParse("1.00")))
	assert.Equal(t, "500.00", MustParse("800.00").Sub(MustParse("300.00")).String())
	assert.Equal(t, "-300.00", MustParse("300").Neg().String())
	assert.Equal(t, "30.00", MustParse("10").Mul(3).String())
	assert.Equal(t, int64(80000), MustParse("800").Cents())
	assert.Equal(t, "12.34", FromCents(1234).String())
}

func TestComparisons(t *testing.T) {
	a := MustParse("800.00")
	b := MustParse("800")
	assert.True(t, a.Equal(b))
	assert.True(t, a.GreaterThanOrEqual(b))
	assert.False(t, a.GreaterThan(b))
	assert.True(t, MustParse("-1").IsNegative())
	assert.True(t, Zero.IsZero())
	assert.Equal(t, "900.00", Max(a, MustParse("900")).String())
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "$800.00", MustParse("800").Display())
	assert.Equal(t, "-$300.00", MustParse("-300").Display())
}

func TestScanAndValue(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan("123.45"))
	assert.Equal(t, "123.45", a.String())
	require.NoError(t, a.Scan(int64(800)))
	assert.Equal(t, "800.00", a.String())
	require.NoError(t, a.Scan(float64(123.45)))
	assert.Equal(t, "123.45", a.String())

	v, err := MustParse("7").Value()
	require.NoError(t, err)
	assert.Equal(t, "7.00", v)
}

func TestJSON(t *testing.T) {
	type body struct {
		Amount Amount `json:"amount"`
	}
	out, err := json.Marshal(body{Amount: MustParse("800")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"800.00"}`, string(out))

	var in body
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"12.5"}`), &in))
	assert.Equal(t, "12.50", in.Amount.String())
	require.NoError(t, json.Unmarshal([]byte(`{"amount":99}`), &in))
	assert.Equal(t, "99.00", in.Amount.String())
}

func TestGormDBDataTypeFollowsDialect(t *testing.T) {
	lite, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	assert.Equal(t, "numeric", Amount{}.GormDBDataType(lite, nil))

	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.New(postgres.Config{DSN: "host=localhost"})}}
	assert.Equal(t, "decimal(12,2)", Amount{}.GormDBDataType(pg, nil))
}
