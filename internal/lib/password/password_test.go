package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon() *Argon2id {
	return NewArgon2id(Argon2Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

func TestHashers_RoundTrip(t *testing.T) {
	hashers := map[string]Hasher{
		"bcrypt":   NewBcrypt(bcrypt.MinCost),
		"argon2id": fastArgon(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("pw1")
			require.NoError(t, err)
			assert.NotEqual(t, "pw1", hash)

			require.NoError(t, h.Verify("pw1", hash))
			assert.ErrorIs(t, h.Verify("pw2", hash), ErrMismatch)

			other, err := h.Hash("pw1")
			require.NoError(t, err)
			assert.NotEqual(t, hash, other, "salt must differ between hashes")
		})
	}
}

func TestArgon2id_Format(t *testing.T) {
	hash, err := fastArgon().Hash("secret")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))
}

func TestArgon2id_RejectsGarbage(t *testing.T) {
	a := fastArgon()

	assert.ErrorIs(t, a.Verify("x", "$argon2id$v=19$broken"), ErrInvalidHash)
	assert.ErrorIs(t, a.Verify("x", "plain"), ErrInvalidHash)
}

func TestBcrypt_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(100).cost)
}

func TestMulti_VerifiesBothFormats(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)
	a := fastArgon()

	bcryptHash, err := b.Hash("pw1")
	require.NoError(t, err)
	argonHash, err := a.Hash("pw1")
	require.NoError(t, err)

	m := NewMulti(a, b, a)

	require.NoError(t, m.Verify("pw1", bcryptHash))
	require.NoError(t, m.Verify("pw1", argonHash))
	assert.ErrorIs(t, m.Verify("nope", bcryptHash), ErrMismatch)

	fresh, err := m.Hash("pw1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fresh, "$argon2id$"))
}
