package sealevel

import (
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

// MemoProgramExecute requires every account passed to the memo to have
// signed and the data to be valid UTF-8.
func MemoProgramExecute(execCtx *ExecutionCtx, instrCtx *InstructionCtx) error {
	signers := instrCtx.Signers()
	cost := uint64(CUMemoProgramDefaultComputeUnits) + uint64(len(signers))*CUMemoProgramPerSignerUnits
	if err := execCtx.ComputeMeter.Consume(cost); err != nil {
		return InstrErrComputeBudgetExceeded
	}

	for idx := uint64(0); idx < instrCtx.NumberOfInstructionAccounts(); idx++ {
		isSigner, err := instrCtx.IsInstructionAccountSigner(idx)
		if err != nil {
			return err
		}
		if !isSigner {
			execCtx.Log.Log("Memo: missing required signature")
			return InstrErrMissingRequiredSignature
		}
	}

	if !utf8.Valid(instrCtx.Data) {
		execCtx.Log.Log("Memo: invalid UTF-8")
		return InstrErrInvalidInstructionData
	}

	lo.ForEach(signers, func(signer solana.PublicKey, _ int) {
		execCtx.Log.Log(fmt.Sprintf("Signed by %s", signer))
	})
	execCtx.Log.Log(fmt.Sprintf("Program log: Memo (len %d): %q", len(instrCtx.Data), instrCtx.Data))
	return nil
}
