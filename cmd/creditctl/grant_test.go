package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("25")
	require.NoError(t, err)
	assert.Equal(t, 25, amount)

	for _, bad := range []string{"5abc", "0", "-3", "", "1.5", " 7"} {
		_, err := parseAmount(bad)
		assert.Error(t, err, bad)
	}
}
