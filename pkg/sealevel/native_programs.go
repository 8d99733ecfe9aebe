package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/base58"
)

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = solana.PublicKey(base58.MustDecodeFromString(SystemProgramAddrStr))

const MemoProgramAddrStr = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

var MemoProgramAddr = solana.PublicKey(base58.MustDecodeFromString(MemoProgramAddrStr))

type NativeProgramFn func(execCtx *ExecutionCtx, instrCtx *InstructionCtx) error

func ResolveNativeProgramById(programId solana.PublicKey) (NativeProgramFn, error) {
	switch programId {
	case SystemProgramAddr:
		return SystemProgramExecute, nil
	case MemoProgramAddr:
		return MemoProgramExecute, nil
	}

	return nil, InstrErrUnsupportedProgramId
}
