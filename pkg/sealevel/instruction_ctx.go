package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/util"
)

type InstructionAccount struct {
	Key           solana.PublicKey
	IndexInCallee uint64
	IsSigner      bool
	IsWritable    bool
}

// InstructionCtx is the view a native program gets of the instruction it
// is executing. Duplicate account metas share one *accounts.Account.
type InstructionCtx struct {
	programId           solana.PublicKey
	Data                []byte
	instructionAccounts []InstructionAccount
	loaded              map[solana.PublicKey]*accounts.Account
	touched             map[solana.PublicKey]bool
}

func (instrCtx *InstructionCtx) ProgramId() solana.PublicKey {
	return instrCtx.programId
}

func (instrCtx *InstructionCtx) NumberOfInstructionAccounts() uint64 {
	return uint64(len(instrCtx.instructionAccounts))
}

func (instrCtx *InstructionCtx) CheckNumOfInstructionAccounts(expected uint64) error {
	if instrCtx.NumberOfInstructionAccounts() < expected {
		return InstrErrNotEnoughAccountKeys
	}
	return nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountSigner(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrMissingAccount
	}
	return instrCtx.instructionAccounts[instrAcctIdx].IsSigner, nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountWritable(instrAcctIdx uint64) (bool, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return false, InstrErrMissingAccount
	}
	return instrCtx.instructionAccounts[instrAcctIdx].IsWritable, nil
}

// Signers returns the distinct signing accounts, ordered by key.
func (instrCtx *InstructionCtx) Signers() []solana.PublicKey {
	var signers []solana.PublicKey
	for _, ia := range instrCtx.instructionAccounts {
		if ia.IsSigner {
			signers = append(signers, ia.Key)
		}
	}
	return util.DedupePubkeys(signers)
}

func (instrCtx *InstructionCtx) BorrowInstructionAccount(instrAcctIdx uint64) (*BorrowedAccount, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return nil, InstrErrNotEnoughAccountKeys
	}

	ia := instrCtx.instructionAccounts[instrAcctIdx]
	acct, ok := instrCtx.loaded[ia.Key]
	if !ok {
		return nil, InstrErrMissingAccount
	}

	return &BorrowedAccount{InstrCtx: instrCtx, IndexInInstruction: instrAcctIdx, Account: acct}, nil
}
