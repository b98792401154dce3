package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCodeMainland(t *testing.T) {
	code, err := NormalizeCode(MarketA, "1")
	require.NoError(t, err)
	assert.Equal(t, "000001", code)

	code, err = NormalizeCode(MarketA, "600000")
	require.NoError(t, err)
	assert.Equal(t, "600000", code)

	code, err = NormalizeCode(MarketA, " 600000 ")
	require.NoError(t, err)
	assert.Equal(t, "600000", code)
}

func TestNormalizeCodeHongKong(t *testing.T) {
	code, err := NormalizeCode(MarketHK, "700")
	require.NoError(t, err)
	assert.Equal(t, "00700", code)

	code, err = NormalizeCode(MarketHK, "00001")
	require.NoError(t, err)
	assert.Equal(t, "00001", code)
}

func TestNormalizeCodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		market string
		code   string
	}{
		{MarketA, "12a"},
		{MarketA, ""},
		{MarketA, "   "},
		{MarketA, "1234567"},
		{MarketHK, "123456"},
		{MarketA, "6000-0"},
		{"X", "123"},
	}

	for _, tc := range cases {
		_, err := NormalizeCode(tc.market, tc.code)
		assert.ErrorIs(t, err, ErrUnrecognizedCode, "market=%s code=%q", tc.market, tc.code)
	}
}
