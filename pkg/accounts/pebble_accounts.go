package accounts

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
)

type PebbleAccountsDb struct {
	db *pebble.DB
}

func OpenPebbleAccountsDb(dir string) (*PebbleAccountsDb, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleAccountsDb{db: db}, nil
}

func (p *PebbleAccountsDb) Close() error {
	return p.db.Close()
}

func (p *PebbleAccountsDb) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	acctBytes, closer, err := p.db.Get(pubkey[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoAccount
	} else if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", pubkey, err)
	}
	defer closer.Close()

	// the returned slice is only valid until closer is closed
	return unmarshalAccount(append([]byte(nil), acctBytes...))
}

func (p *PebbleAccountsDb) SetAccount(pubkey solana.PublicKey, acct *Account) error {
	acctBytes, err := marshalAccount(acct)
	if err != nil {
		return err
	}

	err = p.db.Set(pubkey[:], acctBytes, pebble.Sync)
	if err != nil {
		return fmt.Errorf("error setting account for %s: %w", pubkey, err)
	}
	return nil
}
