package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		price string
		d     *Discount
		want  string
	}{
		{name: "no discount", price: "12.345", d: nil, want: "12.35"},
		{name: "percentage", price: "50.00", d: &Discount{Kind: KindPercentage, Value: dec("10")}, want: "45.00"},
		{name: "percentage zero", price: "50.00", d: &Discount{Kind: KindPercentage, Value: dec("0")}, want: "50.00"},
		{name: "percentage full", price: "50.00", d: &Discount{Kind: KindPercentage, Value: dec("100")}, want: "0"},
		{name: "percentage above 100 floors", price: "50.00", d: &Discount{Kind: KindPercentage, Value: dec("150")}, want: "0"},
		{name: "percentage rounds", price: "9.99", d: &Discount{Kind: KindPercentage, Value: dec("15")}, want: "8.49"},
		{name: "fixed", price: "100.00", d: &Discount{Kind: KindFixed, Value: dec("20")}, want: "80.00"},
		{name: "fixed exceeds price", price: "5.00", d: &Discount{Kind: KindFixed, Value: dec("20")}, want: "0"},
		{name: "unknown kind", price: "5.00", d: &Discount{Kind: "bogus", Value: dec("1")}, want: "5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(dec(tt.price), tt.d)
			assert.True(t, dec(tt.want).Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestApply_PercentageWithinBounds(t *testing.T) {
	prices := []string{"0", "0.01", "1", "19.99", "100", "12345.67"}
	for _, p := range prices {
		price := dec(p)
		for v := int64(0); v <= 100; v += 5 {
			got := Apply(price, &Discount{Kind: KindPercentage, Value: decimal.NewFromInt(v)})
			assert.False(t, got.IsNegative(), "price %s value %d", p, v)
			assert.True(t, got.LessThanOrEqual(price.Round(2)), "price %s value %d got %s", p, v, got)
		}
	}
}

func TestApply_FixedNeverNegative(t *testing.T) {
	for _, v := range []string{"0", "0.5", "10", "99.99", "100", "1000"} {
		got := Apply(dec("100"), &Discount{Kind: KindFixed, Value: dec(v)})
		want := decimal.Max(decimal.Zero, dec("100").Sub(dec(v)))
		assert.True(t, want.Equal(got), "value %s got %s", v, got)
	}
}

func TestCovers(t *testing.T) {
	now := *at("2025-06-15T12:00:00Z")

	tests := []struct {
		name string
		d    Discount
		want bool
	}{
		{name: "open window", d: Discount{Active: true}, want: true},
		{name: "inactive", d: Discount{Active: false}, want: false},
		{name: "started", d: Discount{Active: true, StartsAt: at("2025-06-01T00:00:00Z")}, want: true},
		{name: "not yet started", d: Discount{Active: true, StartsAt: at("2025-07-01T00:00:00Z")}, want: false},
		{name: "expired", d: Discount{Active: true, EndsAt: at("2025-06-14T00:00:00Z")}, want: false},
		{name: "ends exactly now", d: Discount{Active: true, EndsAt: &now}, want: true},
		{name: "starts exactly now", d: Discount{Active: true, StartsAt: &now}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Covers(now))
		})
	}
}

func TestOverlaps(t *testing.T) {
	jan := Discount{StartsAt: at("2025-01-01T00:00:00Z"), EndsAt: at("2025-01-31T23:59:59Z")}
	feb := Discount{StartsAt: at("2025-02-01T00:00:00Z"), EndsAt: at("2025-02-28T23:59:59Z")}
	fromMid := Discount{StartsAt: at("2025-01-15T00:00:00Z")}
	untilMid := Discount{EndsAt: at("2025-01-15T00:00:00Z")}
	forever := Discount{}

	assert.False(t, jan.Overlaps(&feb))
	assert.False(t, feb.Overlaps(&jan))
	assert.True(t, jan.Overlaps(&fromMid))
	assert.True(t, feb.Overlaps(&fromMid))
	assert.True(t, jan.Overlaps(&untilMid))
	assert.False(t, feb.Overlaps(&untilMid))
	assert.True(t, forever.Overlaps(&feb))
	assert.True(t, untilMid.Overlaps(&fromMid), "touching bounds are inclusive")
}

func TestInput_Validate(t *testing.T) {
	empty := "  "
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{name: "fixed", in: Input{Name: "Summer", Kind: KindFixed, Value: dec("5")}},
		{name: "percentage 100", in: Input{Name: "Free", Kind: KindPercentage, Value: dec("100")}},
		{name: "blank name", in: Input{Name: " ", Kind: KindFixed, Value: dec("5")}, wantErr: true},
		{name: "unknown kind", in: Input{Name: "x", Kind: "bogo", Value: dec("5")}, wantErr: true},
		{name: "negative value", in: Input{Name: "x", Kind: KindFixed, Value: dec("-1")}, wantErr: true},
		{name: "fixed too large", in: Input{Name: "x", Kind: KindFixed, Value: dec("1e12")}, wantErr: true},
		{name: "fixed at storage limit", in: Input{Name: "x", Kind: KindFixed, Value: dec("99999999.99")}},
		{name: "percentage over 100", in: Input{Name: "x", Kind: KindPercentage, Value: dec("100.01")}, wantErr: true},
		{name: "inverted window", in: Input{Name: "x", Kind: KindFixed, Value: dec("1"),
			StartsAt: at("2025-02-01T00:00:00Z"), EndsAt: at("2025-01-01T00:00:00Z")}, wantErr: true},
		{name: "blank product is unscoped", in: Input{Name: "x", Kind: KindFixed, Value: dec("1"), ProductID: &empty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
		})
	}

	in := Input{Name: "x", Kind: KindFixed, Value: dec("1"), ProductID: &empty}
	require.NoError(t, in.Validate())
	assert.Nil(t, in.ProductID)
}
