package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the tests fast.
var testParams = Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32}

func TestEncryptDecrypt(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)

	ct, err := Encrypt(key, []byte("secret"))
	require.NoError(t, err)
	assert.Len(t, ct, NonceSize+len("secret")+16)

	pt, err := Decrypt(key, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pt)

	other := bytes.Repeat([]byte{2}, 32)
	_, err = Decrypt(other, ct)
	require.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = Decrypt(key, ct[:NonceSize-1])
	require.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncrypt_FreshNonce(t *testing.T) {
	key := bytes.Repeat([]byte{1}, 32)
	a, err := Encrypt(key, []byte("x"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{9}, SaltSize)

	a := testParams.DeriveKey("correct horse", salt)
	b := testParams.DeriveKey("correct horse", salt)
	c := testParams.DeriveKey("battery staple", salt)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSealOpen(t *testing.T) {
	salt, ct, err := testParams.Seal("hunter2hunter2", []byte("wallet key"))
	require.NoError(t, err)
	require.Len(t, salt, SaltSize)

	pt, err := testParams.Open("hunter2hunter2", salt, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("wallet key"), pt)

	_, err = testParams.Open("wrong passphrase", salt, ct)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCheckPassphrase(t *testing.T) {
	require.NoError(t, CheckPassphrase("longenough", "longenough"))
	require.ErrorIs(t, CheckPassphrase("short", "short"), ErrPassphraseTooShort)
	require.ErrorIs(t, CheckPassphrase("longenough", "different!"), ErrPassphraseMismatch)
}
