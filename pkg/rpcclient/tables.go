package rpcclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/alt"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// GetAccount fetches the confirmed state of an account. A missing account
// yields accounts.ErrNoAccount.
func (fetcher *RpcClient) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*accounts.Account, error) {
	result, err := fetcher.client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, accounts.ErrNoAccount
	} else if err != nil {
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, accounts.ErrNoAccount
	}

	value := result.Value
	acct := &accounts.Account{
		Key:        pubkey,
		Lamports:   value.Lamports,
		Owner:      value.Owner,
		Executable: value.Executable,
	}
	if value.Data != nil {
		acct.Data = value.Data.GetBinary()
	}
	if value.RentEpoch != nil {
		acct.RentEpoch = value.RentEpoch.Uint64()
	}
	return acct, nil
}

// ReadTable fetches a lookup table's current address list.
func (fetcher *RpcClient) ReadTable(ctx context.Context, key solana.PublicKey) (*alt.AddressLookupTableAccount, error) {
	acct, err := fetcher.GetAccount(ctx, key)
	if errors.Is(err, accounts.ErrNoAccount) {
		return nil, fmt.Errorf("%w: %s", alt.ErrLookupTableNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("fetching lookup table %s: %w", key, err)
	}

	return alt.TableAccountFromState(key, acct.Owner, acct.Data)
}

// ReadTables fetches several lookup tables concurrently. The result keeps
// the order of keys.
func (fetcher *RpcClient) ReadTables(ctx context.Context, keys []solana.PublicKey) ([]alt.AddressLookupTableAccount, error) {
	tables := make([]alt.AddressLookupTableAccount, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	if fetcher.MaxConcurrentRequests > 0 {
		group.SetLimit(fetcher.MaxConcurrentRequests)
	}

	for i, key := range keys {
		group.Go(func() error {
			table, err := fetcher.ReadTable(groupCtx, key)
			if err != nil {
				return err
			}
			tables[i] = *table
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	klog.V(2).Infof("fetched %d lookup tables", len(tables))
	return tables, nil
}
