// Package lock не даёт двум задачам одновременно сверять закладки одного аккаунта.
package lock

import (
	"context"
	"sync"

	"manga-bookmark-bot/internal/domain"
)

// Local блокирует аккаунты в пределах одного процесса.
type Local struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

var _ domain.AccountLocker = (*Local)(nil)

// NewLocal создаёт блокировку.
func NewLocal() *Local {
	return &Local{active: make(map[int64]struct{})}
}

// TryLock захватывает аккаунт без ожидания.
func (l *Local) TryLock(_ context.Context, accountID int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[accountID]; busy {
		return nil, domain.ErrAccountBusy
	}
	l.active[accountID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, accountID)
			l.mu.Unlock()
		})
	}, nil
}
