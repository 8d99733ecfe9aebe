package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/sealevel"
)

const testBatch = `
payer: 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
space: 2048
instructions:
  - transfer:
      from: 4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T
      to: 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
      lamports: 5000
  - memo:
      text: hello
      signers: [9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM]
  - program: Vote111111111111111111111111111111111111111
    accounts:
      - pubkey: 4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T
        writable: true
    data: hex:0102ff
lookup_tables:
  - address: 2vZ6P8MTu1Dv5NaV7HqkWUhzBE4e5GWpDdQgtjXqJ9Z8
    addresses:
      - 4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T
  - address: 3kqhPjVTqbJ6r6ZoZqAWaQGx6Lx4M8ZJ3Gk8SwL4PbVu
ledger:
  - pubkey: 4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T
    lamports: 1000000
`

func TestLoadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testBatch), 0o644))

	batch, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), batch.Space)

	payer, err := batch.PayerKey()
	require.NoError(t, err)
	assert.Equal(t, solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"), payer)

	instrs, err := batch.BuildInstructions()
	require.NoError(t, err)
	require.Len(t, instrs, 3)

	assert.Equal(t, sealevel.SystemProgramAddr, instrs[0].ProgramId)
	assert.Equal(t, []byte{2, 0, 0, 0, 0x88, 0x13, 0, 0, 0, 0, 0, 0}, instrs[0].Data)
	assert.True(t, instrs[0].Accounts[0].IsSigner)

	assert.Equal(t, sealevel.MemoProgramAddr, instrs[1].ProgramId)
	assert.Equal(t, []byte("hello"), instrs[1].Data)
	assert.Equal(t, []sealevel.AccountMeta{{Pubkey: payer, IsSigner: true}}, instrs[1].Accounts)

	assert.Equal(t, []byte{1, 2, 0xff}, instrs[2].Data)
	assert.True(t, instrs[2].Accounts[0].IsWritable)

	ledger, err := batch.LedgerAccounts()
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, uint64(1000000), ledger[0].Lamports)
}

func TestBatch_Tables(t *testing.T) {
	batch, err := ParseBatch([]byte(testBatch))
	require.NoError(t, err)

	_, err = batch.Tables(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidBatch)

	fetchedAddr := solana.NewWallet().PublicKey()
	var fetchedKeys []solana.PublicKey
	tables, err := batch.Tables(context.Background(), func(ctx context.Context, keys []solana.PublicKey) ([]alt.AddressLookupTableAccount, error) {
		fetchedKeys = keys
		return []alt.AddressLookupTableAccount{{Key: keys[0], Addresses: []solana.PublicKey{fetchedAddr}}}, nil
	})
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, []solana.PublicKey{solana.MustPublicKeyFromBase58("3kqhPjVTqbJ6r6ZoZqAWaQGx6Lx4M8ZJ3Gk8SwL4PbVu")}, fetchedKeys)
	assert.Equal(t, solana.MustPublicKeyFromBase58("2vZ6P8MTu1Dv5NaV7HqkWUhzBE4e5GWpDdQgtjXqJ9Z8"), tables[0].Key)
	assert.Len(t, tables[0].Addresses, 1)
	assert.Equal(t, []solana.PublicKey{fetchedAddr}, tables[1].Addresses)
}

func TestParseData(t *testing.T) {
	data, err := ParseData("base64:AQID")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = ParseData("base58:Ldp")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	data, err = ParseData("plain text")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain text"), data)

	_, err = ParseData("hex:zz")
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestParseBatch_Errors(t *testing.T) {
	_, err := ParseBatch([]byte("instructions: []"))
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = ParseBatch([]byte("payer: [unterminated"))
	assert.ErrorIs(t, err, ErrInvalidBatch)

	batch, err := ParseBatch([]byte("payer: 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM\ninstructions:\n  - data: hex:00\n"))
	require.NoError(t, err)
	_, err = batch.BuildInstructions()
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = ParsePubkey("not-a-key")
	assert.ErrorIs(t, err, ErrInvalidBatch)
}
