package main

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixture_Bundled(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/fixture.yaml")
	require.NoError(t, err)

	fx, err := parseFixture(data)
	require.NoError(t, err)

	assert.Len(t, fx.Users, 2)
	assert.NotEmpty(t, fx.Products)
	require.Len(t, fx.Discounts, 2)
	require.NotNil(t, fx.Discounts[1].EndsAt)
	assert.Equal(t, 2030, fx.Discounts[1].EndsAt.Year())
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "role", yaml: "users:\n  - email: a@b.c\n    role: root\n", want: "unknown role"},
		{name: "price", yaml: "products:\n  - name: X\n    price: cheap\n", want: "product X: price"},
		{name: "value", yaml: "discounts:\n  - name: D\n    value: lots\n", want: "discount D: value"},
		{name: "syntax", yaml: "users: [", want: "parse fixture YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixture([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProductFixture(t *testing.T) {
	inactive := false
	p, err := productFixture{Name: "Tea", Price: "1.255", Stock: 3, Active: &inactive}.product()
	require.NoError(t, err)

	assert.Equal(t, "1.26", p.Price.StringFixed(2))
	assert.False(t, p.Active)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, time.Minute)

	p, err = productFixture{Name: "Tea", Price: "2"}.product()
	require.NoError(t, err)
	assert.True(t, p.Active)

	_, err = productFixture{Name: "Yacht", Price: "1e9"}.product()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price must not exceed")
}
