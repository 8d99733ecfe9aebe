package accounts

import (
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T) *Account {
	privateKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return &Account{Key: privateKey.PublicKey(), Lamports: 1234, Data: []byte{1, 2, 3}, Owner: solana.SystemProgramID, RentEpoch: 100}
}

func TestMemAccounts_GetSet(t *testing.T) {
	accts := NewMemAccounts()
	acct := newTestAccount(t)

	_, err := accts.GetAccount(acct.Key)
	assert.ErrorIs(t, err, ErrNoAccount)

	require.NoError(t, accts.SetAccount(acct.Key, acct))

	got, err := accts.GetAccount(acct.Key)
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	// stored state is insulated from later mutation of the caller's copy
	got.Data[0] = 0xff
	again, err := accts.GetAccount(acct.Key)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again.Data[0])
}

func TestPebbleAccountsDb_GetSet(t *testing.T) {
	db, err := OpenPebbleAccountsDb(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	acct := newTestAccount(t)

	_, err = db.GetAccount(acct.Key)
	assert.ErrorIs(t, err, ErrNoAccount)

	require.NoError(t, db.SetAccount(acct.Key, acct))
	got, err := db.GetAccount(acct.Key)
	require.NoError(t, err)
	assert.Equal(t, acct, got)
}

func TestPersistentAccountsDb_GetSet(t *testing.T) {
	db, err := OpenPersistentAccountsDb(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	acct := newTestAccount(t)
	_, err = db.GetAccount(acct.Key)
	assert.ErrorIs(t, err, ErrNoAccount)

	require.NoError(t, db.SetAccount(acct.Key, acct))

	got, err := db.GetAccount(acct.Key)
	require.NoError(t, err)
	assert.Equal(t, acct.Lamports, got.Lamports)
	assert.Equal(t, acct.Data, got.Data)
	assert.Equal(t, acct.Owner, got.Owner)
}

func TestLocker_Exclusive(t *testing.T) {
	locker := NewLocker()
	key := solana.NewWallet().PublicKey()

	require.True(t, locker.TryLock(key))
	assert.False(t, locker.TryLock(key))

	locker.Unlock(key)
	assert.True(t, locker.TryLock(key))
	locker.Unlock(key)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locker.TryLock(key) {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}
