package accounts

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/lotusdblabs/lotusdb/v2"
)

type PersistentAccountsDb struct {
	db *lotusdb.DB
}

func OpenPersistentAccountsDb(dir string) (*PersistentAccountsDb, error) {
	options := lotusdb.DefaultOptions
	options.DirPath = dir

	db, err := lotusdb.Open(options)
	if err != nil {
		return nil, err
	}

	return &PersistentAccountsDb{db: db}, nil
}

func (m *PersistentAccountsDb) Close() error {
	return m.db.Close()
}

func (m *PersistentAccountsDb) GetAccount(pubkey solana.PublicKey) (*Account, error) {
	acctBytes, err := m.db.Get(pubkey[:])
	if errors.Is(err, lotusdb.ErrKeyNotFound) {
		return nil, ErrNoAccount
	} else if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", pubkey, err)
	}
	if len(acctBytes) == 0 {
		return nil, ErrNoAccount
	}

	return unmarshalAccount(acctBytes)
}

func (m *PersistentAccountsDb) SetAccount(pubkey solana.PublicKey, acct *Account) error {
	acctBytes, err := marshalAccount(acct)
	if err != nil {
		return err
	}

	err = m.db.Put(pubkey[:], acctBytes)
	if err != nil {
		return fmt.Errorf("error setting account for %s: %w", pubkey, err)
	}

	return nil
}

func marshalAccount(acct *Account) ([]byte, error) {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)

	err := acct.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize account %s: %w", acct.Key, err)
	}

	return writer.Bytes(), nil
}

func unmarshalAccount(data []byte) (*Account, error) {
	decoder := bin.NewBinDecoder(data)
	acct := new(Account)

	err := acct.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize account: %w", err)
	}

	return acct, nil
}
