package vault

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"manga-bookmark-bot/internal/domain"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newTestVault(t)
	for _, plain := range []string{"", "reader", "p@ss w0rd", "пароль", strings.Repeat("x", 4096)} {
		ciphertext, err := v.Encrypt(domain.NewSecret(plain))
		require.NoError(t, err)
		if plain != "" {
			require.NotContains(t, ciphertext, plain)
		}
		got, err := v.Decrypt(ciphertext)
		require.NoError(t, err)
		require.Equal(t, plain, got.Reveal())
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	v := newTestVault(t)
	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWithForeignKey(t *testing.T) {
	first := newTestVault(t)
	second := newTestVault(t)
	ciphertext, err := first.Encrypt("login")
	require.NoError(t, err)

	_, err = second.Decrypt(ciphertext)
	var credErr *domain.CredentialError
	require.True(t, errors.As(err, &credErr))
	require.Equal(t, "decrypt", credErr.Op)
}

func TestDecryptCorrupted(t *testing.T) {
	v := newTestVault(t)
	for _, input := range []string{"", "not base64 !!", "c2hvcnQ"} {
		_, err := v.Decrypt(input)
		var credErr *domain.CredentialError
		require.Truef(t, errors.As(err, &credErr), "input %q", input)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrKeyMissing)

	_, err = New("c2hvcnQ=")
	require.ErrorIs(t, err, ErrKeyMalformed)

	_, err = New("%%%")
	require.ErrorIs(t, err, ErrKeyMalformed)
}

func TestNewAcceptsStdEncoding(t *testing.T) {
	_, err := New("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	require.NoError(t, err)
}
