package sealevel

import (
	bin "github.com/gagliardetto/binary"
	"k8s.io/klog/v2"
)

const (
	SystemProgramInstrTypeTransfer = 2
)

type SystemInstrTransfer struct {
	Lamports uint64
}

func (instr *SystemInstrTransfer) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Lamports, err = decoder.ReadUint64(bin.LE)
	return err
}

func SystemProgramExecute(execCtx *ExecutionCtx, instrCtx *InstructionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUSystemProgramDefaultComputeUnits)
	if err != nil {
		return InstrErrComputeBudgetExceeded
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)

	instructionType, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case SystemProgramInstrTypeTransfer:
		{
			var transfer SystemInstrTransfer
			err = transfer.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			err = instrCtx.CheckNumOfInstructionAccounts(2)
			if err != nil {
				return err
			}
			return SystemProgramTransfer(execCtx, instrCtx, transfer)
		}

	default:
		return InstrErrInvalidInstructionData
	}
}

func SystemProgramTransfer(execCtx *ExecutionCtx, instrCtx *InstructionCtx, transfer SystemInstrTransfer) error {
	isSigner, err := instrCtx.IsInstructionAccountSigner(0)
	if err != nil {
		return err
	}
	if !isSigner {
		klog.Errorf("Transfer: 'from' account must be a signer")
		return InstrErrMissingRequiredSignature
	}

	return transferInternal(execCtx, instrCtx, 0, 1, transfer.Lamports)
}

func transferInternal(execCtx *ExecutionCtx, instrCtx *InstructionCtx, fromAcctIdx uint64, toAcctIdx uint64, lamports uint64) error {
	from, err := instrCtx.BorrowInstructionAccount(fromAcctIdx)
	if err != nil {
		return err
	}

	if len(from.Data()) != 0 {
		klog.Errorf("Transfer: 'from' must not carry data")
		return InstrErrInvalidArgument
	}

	if lamports > from.Lamports() {
		execCtx.Log.Log("Transfer: insufficient lamports")
		klog.Errorf("Transfer: insufficient lamports %d, need %d", from.Lamports(), lamports)
		return SystemProgErrResultWithNegativeLamports
	}

	err = from.CheckedSubLamports(lamports)
	if err != nil {
		return err
	}

	to, err := instrCtx.BorrowInstructionAccount(toAcctIdx)
	if err != nil {
		return err
	}

	return to.CheckedAddLamports(lamports)
}
