package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

func TestFits(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "0", want: true},
		{value: "99999999.99", want: true},
		{value: "99999999.994", want: true},
		{value: "99999999.995", want: false},
		{value: "100000000", want: false},
		{value: "-99999999.99", want: true},
		{value: "-1e12", want: false},
		{value: "1e12", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Fits(decimal.RequireFromString(tt.value)))
		})
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check("price", decimal.NewFromInt(10)))

	err := Check("price", decimal.RequireFromString("1e8"))
	require.Error(t, err)
	assert.Equal(t, fault.KindInvalid, fault.KindOf(err))
	assert.Equal(t, "price must not exceed 99999999.99", err.Error())
}
