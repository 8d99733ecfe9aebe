package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/safemath"
)

type BorrowedAccount struct {
	InstrCtx           *InstructionCtx
	IndexInInstruction uint64
	Account            *accounts.Account
}

func (acct *BorrowedAccount) Key() solana.PublicKey {
	return acct.InstrCtx.instructionAccounts[acct.IndexInInstruction].Key
}

func (acct *BorrowedAccount) Owner() solana.PublicKey {
	return acct.Account.Owner
}

func (acct *BorrowedAccount) Data() []byte {
	return acct.Account.Data
}

func (acct *BorrowedAccount) Lamports() uint64 {
	return acct.Account.Lamports
}

func (acct *BorrowedAccount) IsSigner() bool {
	isSigner, err := acct.InstrCtx.IsInstructionAccountSigner(acct.IndexInInstruction)
	if err != nil {
		return false
	}
	return isSigner
}

func (acct *BorrowedAccount) IsWritable() bool {
	isWritable, err := acct.InstrCtx.IsInstructionAccountWritable(acct.IndexInInstruction)
	if err != nil {
		return false
	}
	return isWritable
}

func (acct *BorrowedAccount) Touch() {
	acct.InstrCtx.touched[acct.Key()] = true
}

func (acct *BorrowedAccount) SetLamports(lamports uint64) error {
	if acct.Account.Lamports == lamports {
		return nil
	}

	if !acct.IsWritable() {
		return InstrErrReadonlyLamportChange
	}

	acct.Touch()
	acct.Account.Lamports = lamports
	return nil
}

func (acct *BorrowedAccount) CheckedAddLamports(lamports uint64) error {
	newLamports, err := safemath.CheckedAddU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports)
}

func (acct *BorrowedAccount) CheckedSubLamports(lamports uint64) error {
	newLamports, err := safemath.CheckedSubU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(newLamports)
}
