package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPickupCodeService_GenerateAndVerify(t *testing.T) {
	svc := NewPickupCodeService(bcrypt.MinCost, 6)

	code, hash, err := svc.Generate()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9]{6}$`, code)
	assert.NotEqual(t, code, hash)

	assert.True(t, svc.Verify(hash, code))
	assert.False(t, svc.Verify(hash, "abcdef"))
	assert.False(t, svc.Verify(hash, ""))
	assert.False(t, svc.Verify("", code))
}

func TestPickupCodeService_CodesDiffer(t *testing.T) {
	svc := NewPickupCodeService(bcrypt.MinCost, 6)
	seen := map[string]struct{}{}
	for range 20 {
		code, _, err := svc.Generate()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestRandomDigits(t *testing.T) {
	for _, n := range []int{1, 4, 6, 9} {
		s, err := randomDigits(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
	}
	_, err := randomDigits(0)
	assert.Error(t, err)
}
