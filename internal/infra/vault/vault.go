// Package vault шифрует учётные данные сайтов перед записью в БД.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"manga-bookmark-bot/internal/domain"
)

var (
	// ErrKeyMissing возвращается, если ключ не задан.
	ErrKeyMissing = errors.New("vault: encryption key is empty")
	// ErrKeyMalformed возвращается, если ключ не декодируется в 32 байта.
	ErrKeyMalformed = errors.New("vault: encryption key must be 32 bytes in base64")

	errCiphertextShort = errors.New("ciphertext too short")
)

// Vault реализует domain.Vault на XChaCha20-Poly1305. Ключ неизменяем после создания.
type Vault struct {
	aead cipher.AEAD
}

var _ domain.Vault = (*Vault)(nil)

// New разбирает ключ из конфигурации.
func New(key string) (*Vault, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyMissing
	}
	raw, err := decodeKey(key)
	if err != nil || len(raw) != chacha20poly1305.KeySize {
		return nil, ErrKeyMalformed
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// GenerateKey создаёт новый ключ в формате, который принимает New.
func GenerateKey() (string, error) {
	raw := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Encrypt шифрует значение со случайным nonce.
func (v *Vault) Encrypt(plain domain.Secret) (string, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain.Reveal())+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", &domain.CredentialError{Op: "encrypt", Err: err}
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plain.Reveal()), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt расшифровывает значение, записанное Encrypt с тем же ключом.
func (v *Vault) Decrypt(ciphertext string) (domain.Secret, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", &domain.CredentialError{Op: "decrypt", Err: err}
	}
	if len(sealed) < v.aead.NonceSize()+v.aead.Overhead() {
		return "", &domain.CredentialError{Op: "decrypt", Err: errCiphertextShort}
	}
	nonce, body := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", &domain.CredentialError{Op: "decrypt", Err: err}
	}
	return domain.NewSecret(string(plain)), nil
}

func decodeKey(key string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(key)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
