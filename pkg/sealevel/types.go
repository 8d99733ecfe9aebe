package sealevel

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction is a program invocation with fully resolved accounts.
type Instruction struct {
	ProgramId solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// InstructionFromSolana converts an instruction built with solana-go's
// program helpers.
func InstructionFromSolana(instr solana.Instruction) (Instruction, error) {
	data, err := instr.Data()
	if err != nil {
		return Instruction{}, fmt.Errorf("unable to encode instruction data: %w", err)
	}

	metas := instr.Accounts()
	acctMetas := make([]AccountMeta, 0, len(metas))
	for _, am := range metas {
		acctMetas = append(acctMetas, AccountMeta{Pubkey: am.PublicKey, IsSigner: am.IsSigner, IsWritable: am.IsWritable})
	}

	return Instruction{ProgramId: instr.ProgramID(), Accounts: acctMetas, Data: data}, nil
}
