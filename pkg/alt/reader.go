package alt

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/accounts"
	"k8s.io/klog/v2"
)

// TableReader returns a lookup table's current address list.
type TableReader interface {
	ReadTable(ctx context.Context, key solana.PublicKey) (*AddressLookupTableAccount, error)
}

// AccountsReader reads lookup tables out of a local record store.
type AccountsReader struct {
	Accounts accounts.Accounts
}

func (r AccountsReader) ReadTable(ctx context.Context, key solana.PublicKey) (*AddressLookupTableAccount, error) {
	acct, err := r.Accounts.GetAccount(key)
	if errors.Is(err, accounts.ErrNoAccount) {
		return nil, fmt.Errorf("%w: %s", ErrLookupTableNotFound, key)
	} else if err != nil {
		return nil, err
	}

	return TableAccountFromState(key, acct.Owner, acct.Data)
}

// TableAccountFromState decodes raw account state into a table, checking
// that the account belongs to the lookup table program.
func TableAccountFromState(key solana.PublicKey, owner solana.PublicKey, data []byte) (*AddressLookupTableAccount, error) {
	if owner != AddressLookupTableProgramAddr {
		klog.Errorf("lookup table %s is owned by %s", key, owner)
		return nil, ErrInvalidAccountOwner
	}

	table, err := UnmarshalAddressLookupTable(data)
	if err != nil {
		return nil, err
	}

	return &AddressLookupTableAccount{Key: key, Addresses: table.Addresses}, nil
}

// WriteTable stores table state under key, owned by the lookup table program.
func WriteTable(accts accounts.Accounts, key solana.PublicKey, table *AddressLookupTable) error {
	data, err := MarshalAddressLookupTable(table)
	if err != nil {
		return err
	}

	acct := &accounts.Account{Key: key, Owner: AddressLookupTableProgramAddr, Data: data, Lamports: 1}
	return accts.SetAccount(key, acct)
}

// ReadTables resolves each key in order.
func ReadTables(ctx context.Context, reader TableReader, keys []solana.PublicKey) ([]AddressLookupTableAccount, error) {
	tables := make([]AddressLookupTableAccount, 0, len(keys))
	for _, key := range keys {
		table, err := reader.ReadTable(ctx, key)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, nil
}
