package domain

const redacted = "[REDACTED]"

// Secret хранит расшифрованное значение учётных данных.
// Любое форматирование и сериализация выводят заглушку, открытый текст доступен только через Reveal.
type Secret string

// NewSecret оборачивает открытый текст.
func NewSecret(plain string) Secret { return Secret(plain) }

// Reveal возвращает открытый текст.
func (s Secret) Reveal() string { return string(s) }

// Empty сообщает, что значение пустое.
func (s Secret) Empty() bool { return s == "" }

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// MarshalText не раскрывает значение.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// MarshalJSON не раскрывает значение.
func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// Credentials хранит расшифрованные логин и пароль аккаунта.
type Credentials struct {
	Login    Secret
	Password Secret
}
