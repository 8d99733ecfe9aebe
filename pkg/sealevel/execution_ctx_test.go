package sealevel

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/executor/pkg/accounts"
)

func TestPrepareInstruction_Privilege_Escalation(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	readonly := solana.NewWallet().PublicKey()

	callers := []AccountMeta{
		{Pubkey: signer, IsSigner: true, IsWritable: true},
		{Pubkey: readonly},
		{Pubkey: SystemProgramAddr},
	}
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), callers, DefaultComputeUnitLimit)

	_, err := execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: readonly, IsWritable: true}}}, nil)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)

	_, err = execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: readonly, IsSigner: true}}}, nil)
	assert.ErrorIs(t, err, InstrErrPrivilegeEscalation)

	_, err = execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: readonly, IsSigner: true}}}, []solana.PublicKey{readonly})
	assert.NoError(t, err)

	_, err = execCtx.PrepareInstruction(Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: signer, IsSigner: true, IsWritable: true}}}, nil)
	assert.NoError(t, err)
}

func TestPrepareInstruction_Merges_Duplicates(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	callers := []AccountMeta{{Pubkey: key, IsSigner: true, IsWritable: true}, {Pubkey: SystemProgramAddr}}
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), callers, DefaultComputeUnitLimit)

	instrAccts, err := execCtx.PrepareInstruction(Instruction{
		ProgramId: SystemProgramAddr,
		Accounts:  []AccountMeta{{Pubkey: key, IsSigner: true}, {Pubkey: key, IsWritable: true}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, instrAccts, 2)
	for _, ia := range instrAccts {
		assert.True(t, ia.IsSigner)
		assert.True(t, ia.IsWritable)
	}
	assert.Equal(t, uint64(1), instrAccts[1].IndexInCallee)
}

func TestInvoke_Missing_Account(t *testing.T) {
	unknown := solana.NewWallet().PublicKey()
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), []AccountMeta{{Pubkey: SystemProgramAddr}}, DefaultComputeUnitLimit)

	err := execCtx.Invoke(context.Background(), Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: unknown}}})
	assert.ErrorIs(t, err, InstrErrMissingAccount)

	err = execCtx.Invoke(context.Background(), Instruction{ProgramId: MemoProgramAddr})
	assert.ErrorIs(t, err, InstrErrMissingAccount)
}

func TestInvoke_Unsupported_Program(t *testing.T) {
	programId := solana.NewWallet().PublicKey()
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), []AccountMeta{{Pubkey: programId}}, DefaultComputeUnitLimit)

	err := execCtx.Invoke(context.Background(), Instruction{ProgramId: programId})
	assert.ErrorIs(t, err, InstrErrUnsupportedProgramId)
	assert.Equal(t, InstrErrCodeUnsupportedProgramId, TranslateErrToInstrErrCode(err))
}

func TestInvoke_Canceled_Context(t *testing.T) {
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), []AccountMeta{{Pubkey: MemoProgramAddr}}, DefaultComputeUnitLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := execCtx.Invoke(ctx, Instruction{ProgramId: MemoProgramAddr, Data: []byte("hi")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvoke_Compute_Budget_Exceeded(t *testing.T) {
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), []AccountMeta{{Pubkey: MemoProgramAddr}}, 10)

	err := execCtx.Invoke(context.Background(), Instruction{ProgramId: MemoProgramAddr, Data: []byte("hi")})
	assert.ErrorIs(t, err, InstrErrComputeBudgetExceeded)
}

func TestExecute_Memo_Program(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	callers := []AccountMeta{{Pubkey: signer, IsSigner: true}, {Pubkey: other}, {Pubkey: MemoProgramAddr}}
	execCtx := NewExecutionCtx(accounts.NewMemAccounts(), callers, DefaultComputeUnitLimit)

	err := execCtx.Invoke(context.Background(), Instruction{
		ProgramId: MemoProgramAddr,
		Accounts:  []AccountMeta{{Pubkey: signer, IsSigner: true}},
		Data:      []byte("hello"),
	})
	require.NoError(t, err)
	logs := execCtx.Log.(*LogRecorder).Logs
	assert.Contains(t, logs, "Signed by "+signer.String())
	assert.Contains(t, logs, `Program log: Memo (len 5): "hello"`)

	err = execCtx.Invoke(context.Background(), Instruction{
		ProgramId: MemoProgramAddr,
		Accounts:  []AccountMeta{{Pubkey: other}},
		Data:      []byte("hello"),
	})
	assert.ErrorIs(t, err, InstrErrMissingRequiredSignature)

	err = execCtx.Invoke(context.Background(), Instruction{ProgramId: MemoProgramAddr, Data: []byte{0xff, 0xfe}})
	assert.ErrorIs(t, err, InstrErrInvalidInstructionData)
}
