package accounts

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

type MemAccounts struct {
	mu  sync.RWMutex
	Map map[solana.PublicKey]*Account
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{
		Map: make(map[solana.PublicKey]*Account),
	}
}

func (m *MemAccounts) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.Map[pubkey]
	if !ok {
		return nil, ErrNoAccount
	}
	return acct.Clone(), nil
}

func (m *MemAccounts) SetAccount(pubkey solana.PublicKey, acct *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Map[pubkey] = acct.Clone()
	return nil
}
