package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMinor_RoundTripsExactly(t *testing.T) {
	cases := []struct {
		name      string
		majorUSD  int64
		rate      int64
		wantMajor int64
	}{
		{name: "even amount", majorUSD: 99, rate: 1600, wantMajor: 158400},
		{name: "not evenly divisible by common denominators", majorUSD: 97, rate: 1600, wantMajor: 155200},
		{name: "single dollar", majorUSD: 1, rate: 1600, wantMajor: 1600},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minor := MajorToMinor(tc.majorUSD)
			converted, err := ConvertMinor(minor, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, MajorToMinor(tc.wantMajor), converted)

			back, err := UnconvertMinor(converted, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, minor, back)
		})
	}
}

func TestUnconvertMinor_RejectsDrift(t *testing.T) {
	_, err := UnconvertMinor(158401, 1600)
	require.Error(t, err)
}

func TestConvertMinor_RejectsBadInputs(t *testing.T) {
	_, err := ConvertMinor(-1, 1600)
	require.Error(t, err)
	_, err = ConvertMinor(100, 0)
	require.Error(t, err)
}

func TestCommissionMinor(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		rate   float64
		want   int64
	}{
		{name: "spec example", amount: 10000, rate: 0.10, want: 1000},
		{name: "webhook scenario", amount: 9900, rate: 0.10, want: 990},
		{name: "rounds half up", amount: 5, rate: 0.10, want: 1},
		{name: "rounds down below half", amount: 4, rate: 0.10, want: 0},
		{name: "zero rate", amount: 10000, rate: 0, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CommissionMinor(tc.amount, tc.rate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCommissionMinor_RejectsBadRate(t *testing.T) {
	_, err := CommissionMinor(100, 1.5)
	require.Error(t, err)
	_, err = CommissionMinor(100, -0.1)
	require.Error(t, err)
}

func TestMinorToMajorString(t *testing.T) {
	assert.Equal(t, "99.00", MinorToMajorString(9900))
	assert.Equal(t, "0.05", MinorToMajorString(5))
}
