package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/compiler"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/vaulttx"
)

type recordingInvoker struct {
	calls  []InvokeRequest
	failAt int
	err    error
}

func (r *recordingInvoker) Invoke(ctx context.Context, req InvokeRequest) error {
	r.calls = append(r.calls, req)
	if r.err != nil && len(r.calls)-1 == r.failAt {
		return r.err
	}
	return nil
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func transfer(t *testing.T, lamports uint64, from, to solana.PublicKey) sealevel.Instruction {
	instr, err := sealevel.InstructionFromSolana(system.NewTransferInstruction(lamports, from, to).Build())
	require.NoError(t, err)
	return instr
}

func tableInfo(t *testing.T, table alt.AddressLookupTableAccount) AccountInfo {
	authority := newKey()
	state := alt.NewAddressLookupTable(&authority)
	require.NoError(t, state.Extend(1, table.Addresses))
	data, err := alt.MarshalAddressLookupTable(state)
	require.NoError(t, err)
	return AccountInfo{Key: table.Key, Owner: alt.AddressLookupTableProgramAddr, Data: data}
}

// callerAccounts lists the accounts a well-behaved caller supplies for msg.
func callerAccounts(msg *vaulttx.VaultTransactionMessage, tables []alt.AddressLookupTableAccount) ([]AccountInfo, []AccountInfo) {
	byKey := make(map[solana.PublicKey]alt.AddressLookupTableAccount)
	for _, table := range tables {
		byKey[table.Key] = table
	}

	var messageAccounts []AccountInfo
	for i, key := range msg.AccountKeys {
		messageAccounts = append(messageAccounts, AccountInfo{Key: key, IsSigner: msg.IsSignerIndex(i), IsWritable: msg.IsWritableIndex(i)})
	}
	for _, lookup := range msg.AddressTableLookups {
		for _, idx := range lookup.WritableIndexes {
			messageAccounts = append(messageAccounts, AccountInfo{Key: byKey[lookup.AccountKey].Addresses[idx], IsWritable: true})
		}
	}
	for _, lookup := range msg.AddressTableLookups {
		for _, idx := range lookup.ReadonlyIndexes {
			messageAccounts = append(messageAccounts, AccountInfo{Key: byKey[lookup.AccountKey].Addresses[idx]})
		}
	}

	var tableAccounts []AccountInfo
	for _, lookup := range msg.AddressTableLookups {
		tableAccounts = append(tableAccounts, AccountInfo{Key: lookup.AccountKey})
	}
	return messageAccounts, tableAccounts
}

func compileWithTables(t *testing.T, payer solana.PublicKey, instrs []sealevel.Instruction, tables []alt.AddressLookupTableAccount) (*vaulttx.VaultTransactionMessage, []AccountInfo, []AccountInfo) {
	msg, err := compiler.TryCompile(payer, instrs, tables)
	require.NoError(t, err)

	messageAccounts, tableAccounts := callerAccounts(msg, tables)
	for i := range tableAccounts {
		for _, table := range tables {
			if table.Key == tableAccounts[i].Key {
				tableAccounts[i] = tableInfo(t, table)
			}
		}
	}
	return msg, messageAccounts, tableAccounts
}

func TestExecuteMessage_Round_Trip(t *testing.T) {
	payer := newKey()
	user := newKey()
	instrs := []sealevel.Instruction{transfer(t, 500, user, payer)}

	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, instrs, nil)
	assert.Empty(t, tableAccounts)

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	var invoker recordingInvoker
	require.NoError(t, em.ExecuteMessage(context.Background(), &invoker))

	require.Len(t, invoker.calls, 1)
	assert.Equal(t, instrs[0].ProgramId, invoker.calls[0].ProgramId)
	require.Len(t, invoker.calls[0].Accounts, len(instrs[0].Accounts))
	for i, am := range instrs[0].Accounts {
		assert.Equal(t, am.Pubkey, invoker.calls[0].Accounts[i].Pubkey)
	}
	assert.Equal(t, instrs[0].Data, invoker.calls[0].Data)

	// privileges come from the message, where the payer signs
	assert.Equal(t, sealevel.AccountMeta{Pubkey: user, IsSigner: true, IsWritable: true}, invoker.calls[0].Accounts[0])
	assert.Equal(t, sealevel.AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true}, invoker.calls[0].Accounts[1])
}

func TestExecuteMessage_Drains_Once(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{transfer(t, 1, user, payer), transfer(t, 2, user, payer)}, nil)

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	var invoker recordingInvoker
	require.NoError(t, em.ExecuteMessage(context.Background(), &invoker))
	assert.Len(t, invoker.calls, 2)
	assert.Empty(t, msg.Instructions)
	assert.NotNil(t, msg.Instructions)

	require.NoError(t, em.ExecuteMessage(context.Background(), &invoker))
	assert.Len(t, invoker.calls, 2)

	// a fresh validation of the drained message runs nothing either
	em, err = NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)
	require.NoError(t, em.ExecuteMessage(context.Background(), &invoker))
	assert.Len(t, invoker.calls, 2)
}

func TestNewValidated_Static_Mismatch(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{transfer(t, 1, user, payer)}, nil)

	messageAccounts[0].Key = newKey()
	_, err := NewValidated(msg, messageAccounts, tableAccounts)
	assert.ErrorIs(t, err, ExecutorErrInvalidAccount)

	code, ok := ErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(ExecutorErrCodeInvalidAccount), code)
	assert.Len(t, msg.Instructions, 1)
}

func TestNewValidated_Lookup_Table_Count_Mismatch(t *testing.T) {
	payer := newKey()
	readonly := newKey()
	programId := newKey()
	table := alt.AddressLookupTableAccount{Key: newKey(), Addresses: []solana.PublicKey{readonly}}

	msg, messageAccounts, tableAccounts := compileWithTables(t, payer,
		[]sealevel.Instruction{{ProgramId: programId, Accounts: []sealevel.AccountMeta{{Pubkey: readonly}}}},
		[]alt.AddressLookupTableAccount{table})
	require.Len(t, tableAccounts, 1)

	// addresses are wrong too, but the count is checked first
	messageAccounts[0].Key = newKey()
	_, err := NewValidated(msg, messageAccounts, tableAccounts[:0])
	assert.ErrorIs(t, err, ExecutorErrInvalidNumberOfAccounts)

	code, ok := ErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(ExecutorErrCodeInvalidNumberOfAccounts), code)
}

func TestNewValidated_Message_Account_Count_Mismatch(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{transfer(t, 1, user, payer)}, nil)

	_, err := NewValidated(msg, messageAccounts[:len(messageAccounts)-1], tableAccounts)
	assert.ErrorIs(t, err, ExecutorErrInvalidNumberOfAccounts)

	_, err = NewValidated(msg, append(messageAccounts, AccountInfo{Key: newKey()}), tableAccounts)
	assert.ErrorIs(t, err, ExecutorErrInvalidNumberOfAccounts)
}

func TestNewValidated_Invalid_Message(t *testing.T) {
	msg := &vaulttx.VaultTransactionMessage{
		NumSigners:  3,
		AccountKeys: []solana.PublicKey{newKey()},
	}

	_, err := NewValidated(msg, nil, []AccountInfo{{Key: newKey()}})
	assert.ErrorIs(t, err, ExecutorErrInvalidTransactionMessage)

	code, ok := ErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(ExecutorErrCodeInvalidTransactionMessage), code)
}

func TestNewValidated_Lookup_Metadata(t *testing.T) {
	payer := newKey()
	writable := newKey()
	readonly := newKey()
	programId := newKey()
	table := alt.AddressLookupTableAccount{Key: newKey(), Addresses: []solana.PublicKey{readonly, writable, programId}}

	instrs := []sealevel.Instruction{{
		ProgramId: programId,
		Accounts: []sealevel.AccountMeta{
			{Pubkey: writable, IsWritable: true},
			{Pubkey: readonly},
			{Pubkey: payer, IsSigner: true, IsWritable: true},
		},
		Data: []byte{9},
	}}

	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, instrs, []alt.AddressLookupTableAccount{table})
	require.Len(t, msg.AccountKeys, 1)

	// caller flags on dynamic addresses are not trusted
	for i := range messageAccounts {
		messageAccounts[i].IsSigner = true
		messageAccounts[i].IsWritable = true
	}

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	metas := em.AccountMetas()
	require.Len(t, metas, 4)
	assert.Equal(t, sealevel.AccountMeta{Pubkey: payer, IsSigner: true, IsWritable: true}, metas[0])
	assert.Equal(t, sealevel.AccountMeta{Pubkey: writable, IsWritable: true}, metas[1])
	for _, meta := range metas[2:] {
		assert.False(t, meta.IsSigner)
		assert.False(t, meta.IsWritable)
	}

	var invoker recordingInvoker
	require.NoError(t, em.ExecuteMessage(context.Background(), &invoker))
	require.Len(t, invoker.calls, 1)
	assert.Equal(t, programId, invoker.calls[0].ProgramId)
	assert.Equal(t, []sealevel.AccountMeta{
		{Pubkey: writable, IsWritable: true},
		{Pubkey: readonly},
		{Pubkey: payer, IsSigner: true, IsWritable: true},
	}, invoker.calls[0].Accounts)
}

func TestNewValidated_Lookup_Table_Checks(t *testing.T) {
	payer := newKey()
	first := newKey()
	second := newKey()
	programId := newKey()
	table := alt.AddressLookupTableAccount{Key: newKey(), Addresses: []solana.PublicKey{first, second}}

	instrs := []sealevel.Instruction{{
		ProgramId: programId,
		Accounts:  []sealevel.AccountMeta{{Pubkey: first, IsWritable: true}, {Pubkey: second, IsWritable: true}},
	}}
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, instrs, []alt.AddressLookupTableAccount{table})

	_, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	t.Run("wrong owner", func(t *testing.T) {
		bad := append([]AccountInfo{}, tableAccounts...)
		bad[0].Owner = sealevel.SystemProgramAddr
		_, err := NewValidated(msg, messageAccounts, bad)
		assert.ErrorIs(t, err, ExecutorErrInvalidAccount)
	})

	t.Run("wrong table key", func(t *testing.T) {
		bad := append([]AccountInfo{}, tableAccounts...)
		bad[0].Key = newKey()
		_, err := NewValidated(msg, messageAccounts, bad)
		assert.ErrorIs(t, err, ExecutorErrInvalidAccount)
	})

	t.Run("undecodable table", func(t *testing.T) {
		bad := append([]AccountInfo{}, tableAccounts...)
		bad[0].Data = []byte{1, 2, 3}
		_, err := NewValidated(msg, messageAccounts, bad)
		assert.ErrorIs(t, err, ExecutorErrInvalidAccount)
	})

	t.Run("swapped dynamic addresses", func(t *testing.T) {
		bad := append([]AccountInfo{}, messageAccounts...)
		n := len(bad)
		bad[n-1], bad[n-2] = bad[n-2], bad[n-1]
		_, err := NewValidated(msg, bad, tableAccounts)
		assert.ErrorIs(t, err, ExecutorErrInvalidAccount)
	})

	t.Run("index past end of table", func(t *testing.T) {
		shrunk := tableInfo(t, alt.AddressLookupTableAccount{Key: table.Key, Addresses: table.Addresses[:1]})
		_, err := NewValidated(msg, messageAccounts, []AccountInfo{shrunk})
		assert.ErrorIs(t, err, ExecutorErrInvalidAccount)
		assert.ErrorIs(t, err, alt.ErrLookupTableIndexRange)
	})

	assert.Len(t, msg.Instructions, 1)
}

func TestExecuteMessage_Aborts_On_Failure(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{
		transfer(t, 1, user, payer),
		transfer(t, 2, user, payer),
		transfer(t, 3, user, payer),
	}, nil)

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	errDownstream := errors.New("downstream failed")
	invoker := recordingInvoker{failAt: 1, err: errDownstream}
	err = em.ExecuteMessage(context.Background(), &invoker)
	assert.ErrorIs(t, err, errDownstream)
	assert.Len(t, invoker.calls, 2)
	assert.Empty(t, msg.Instructions)

	_, ok := ErrorCode(err)
	assert.False(t, ok)
}

func TestExecuteMessage_Drain_Hook(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{transfer(t, 1, user, payer)}, nil)

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	var invoker recordingInvoker
	hookCalled := false
	err = em.ExecuteMessage(context.Background(), &invoker, WithDrainHook(func(drained *vaulttx.VaultTransactionMessage) error {
		hookCalled = true
		assert.Empty(t, drained.Instructions)
		assert.Empty(t, invoker.calls)
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, hookCalled)
	assert.Len(t, invoker.calls, 1)
}

func TestExecuteMessage_Drain_Hook_Failure(t *testing.T) {
	payer := newKey()
	user := newKey()
	msg, messageAccounts, tableAccounts := compileWithTables(t, payer, []sealevel.Instruction{transfer(t, 1, user, payer)}, nil)

	em, err := NewValidated(msg, messageAccounts, tableAccounts)
	require.NoError(t, err)

	errStore := errors.New("store failed")
	var invoker recordingInvoker
	err = em.ExecuteMessage(context.Background(), &invoker, WithDrainHook(func(*vaulttx.VaultTransactionMessage) error {
		return errStore
	}))
	assert.ErrorIs(t, err, errStore)
	assert.Empty(t, invoker.calls)
}
