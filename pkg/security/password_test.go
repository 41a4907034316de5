package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	assert.NoError(t, ValidatePasswordStrength("Sup3r$ecret"))

	for _, weak := range []string{
		"Sh0rt!",
		"alllower1!",
		"ALLUPPER1!",
		"NoDigits!!",
		"NoSpecial12",
	} {
		assert.ErrorIs(t, ValidatePasswordStrength(weak), ErrWeakPassword, weak)
	}
}

func TestIsPhoneNumber(t *testing.T) {
	assert.True(t, IsPhoneNumber("9876543210"))
	assert.False(t, IsPhoneNumber("987654321"))
	assert.False(t, IsPhoneNumber("98765432101"))
	assert.False(t, IsPhoneNumber("98765-4321"))
	assert.False(t, IsPhoneNumber("９８７６５４３２１０"))
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Sup3r$ecret")
	require.NoError(t, err)
	assert.NoError(t, hasher.Compare(hash, "Sup3r$ecret"))
	assert.Error(t, hasher.Compare(hash, "wrong"))

	_, err = hasher.Hash("weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
}
