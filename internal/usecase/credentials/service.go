package credentials

import (
	"context"
	"errors"
	"fmt"

	"manga-bookmark-bot/internal/domain"
)

// ErrEmptyCredentials возвращается, если логин или пароль пусты.
var ErrEmptyCredentials = errors.New("login and password are required")

// Service сохраняет и выдаёт учётные данные аккаунтов.
type Service struct {
	websites domain.WebsiteRepo
	accounts domain.AccountRepo
	vault    domain.Vault
}

// NewService создаёт сервис.
func NewService(websites domain.WebsiteRepo, accounts domain.AccountRepo, vault domain.Vault) *Service {
	return &Service{websites: websites, accounts: accounts, vault: vault}
}

// SaveCredentials шифрует логин и пароль и создаёт или перезаписывает аккаунт пары (chat_id, website_id).
func (s *Service) SaveCredentials(ctx context.Context, chatID, websiteID int64, login, password domain.Secret) (domain.Account, error) {
	if login.Empty() || password.Empty() {
		return domain.Account{}, ErrEmptyCredentials
	}
	website, err := s.websites.GetWebsite(ctx, websiteID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("сайт %d: %w", websiteID, err)
	}

	encLogin, err := s.vault.Encrypt(login)
	if err != nil {
		return domain.Account{}, asCredentialError("encrypt", err)
	}
	encPassword, err := s.vault.Encrypt(password)
	if err != nil {
		return domain.Account{}, asCredentialError("encrypt", err)
	}

	account, _, err := s.accounts.UpsertAccount(ctx, chatID, website.ID, encLogin, encPassword)
	if err != nil {
		return domain.Account{}, fmt.Errorf("сохранение аккаунта: %w", err)
	}
	account.Website = website
	return account, nil
}

// Credentials расшифровывает учётные данные аккаунта.
func (s *Service) Credentials(account domain.Account) (domain.Credentials, error) {
	login, err := s.vault.Decrypt(account.Login)
	if err != nil {
		return domain.Credentials{}, asCredentialError("decrypt", err)
	}
	password, err := s.vault.Decrypt(account.Password)
	if err != nil {
		return domain.Credentials{}, asCredentialError("decrypt", err)
	}
	return domain.Credentials{Login: login, Password: password}, nil
}

func asCredentialError(op string, err error) error {
	var credErr *domain.CredentialError
	if errors.As(err, &credErr) {
		return err
	}
	return &domain.CredentialError{Op: op, Err: err}
}
