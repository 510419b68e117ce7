package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
	}{
		{"45000", 45000},
		{"₹1,20,000.50", 120000.50},
		{"Rs. 4500", 4500},
		{"INR 12,345/-", 12345},
		{"-250.75", -250.75},
		{"(1,000)", -1000},
		{"", 0},
		{"n/a", 0},
		{"12.", 12},
		{"1.2 lakh", 120000},
		{"₹1.5 Lakhs", 150000},
		{"3 lac", 300000},
		{"4.5L", 450000},
		{"2 crore", 20000000},
		{"Rs 1.25 Cr.", 12500000},
		{"12 LPA", 1200000},
		{"50k", 50000},
		{"45000 INR", 45000},
		{"1,00,000 per month", 100000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ParseAmount(tt.in), 0.001)
		})
	}
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
		D Amount `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 1500.5, "b": "₹0.45 lakh", "c": null, "d": "unknown"}`), &v)
	require.NoError(t, err)
	assert.InDelta(t, 1500.5, v.A.Float(), 0.001)
	assert.InDelta(t, 45000, v.B.Float(), 0.001)
	assert.Zero(t, v.C)
	assert.Zero(t, v.D)
}

func TestOptionalNumber(t *testing.T) {
	t.Parallel()

	var v struct {
		P OptionalNumber `json:"p"`
		C OptionalNumber `json:"c"`
		G OptionalNumber `json:"g"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p": "87.5%", "c": null, "g": "A+"}`), &v))
	assert.True(t, v.P.Set)
	assert.InDelta(t, 87.5, v.P.Value, 0.001)
	assert.False(t, v.C.Set)
	assert.False(t, v.G.Set)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"p": 87.5, "c": null, "g": null}`, string(out))
}

func TestYear_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Year `json:"a"`
		B Year `json:"b"`
		C Year `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 2019, "b": "March 2021", "c": "2018-19"}`), &v))
	assert.Equal(t, Year(2019), v.A)
	assert.Equal(t, Year(2021), v.B)
	assert.Equal(t, Year(2018), v.C)
}
