package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, pw := range []string{"pw123456", "correct horse battery staple", "ünïcødé-pässwörd"} {
		digest, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, digest)
		assert.True(t, h.Verify(pw, digest), "password %q should verify", pw)
		assert.False(t, h.Verify(pw+"x", digest), "wrong password %q should not verify", pw+"x")
	}
}

func TestHasher_SaltedOutput(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("pw123456")
	require.NoError(t, err)
	b, err := h.Hash("pw123456")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_RejectsInvalidInput(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestHasher_VerifyFailsClosed(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("pw123456", "not-a-bcrypt-digest"))
	assert.False(t, h.Verify("pw123456", ""))
	assert.False(t, h.Verify("", "$2a$04$abcdefghijklmnopqrstuu"))
}

func TestHasher_CostChangeKeepsOldDigests(t *testing.T) {
	old := NewHasher(bcrypt.MinCost)
	digest, err := old.Hash("pw123456")
	require.NoError(t, err)

	current := NewHasher(bcrypt.MinCost + 1)
	assert.True(t, current.Verify("pw123456", digest))

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
	assert.Equal(t, 12, NewHasher(12).Cost)
}
